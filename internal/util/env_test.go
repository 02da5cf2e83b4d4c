package util

import (
	"testing"
	"time"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("FINKG_TEST_STRING", "neo4j")
	t.Setenv("FINKG_TEST_EMPTY", "")
	t.Setenv("FINKG_TEST_NUM", "2.5")
	t.Setenv("FINKG_TEST_BAD_NUM", "many")
	t.Setenv("FINKG_TEST_BOOL", "true")
	t.Setenv("FINKG_TEST_BAD_BOOL", "yes")

	if got := GetEnvString("FINKG_TEST_STRING", "x"); got != "neo4j" {
		t.Fatalf("GetEnvString = %q", got)
	}
	if got := GetEnvString("FINKG_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Fatalf("GetEnvString on empty = %q", got)
	}
	if got := GetEnvNumeric("FINKG_TEST_NUM", 1); got != 2.5 {
		t.Fatalf("GetEnvNumeric = %v", got)
	}
	if got := GetEnvNumeric("FINKG_TEST_BAD_NUM", 3); got != 3 {
		t.Fatalf("GetEnvNumeric fallback = %v", got)
	}
	if got := GetEnvSeconds("FINKG_TEST_NUM", 1); got != 2500*time.Millisecond {
		t.Fatalf("GetEnvSeconds = %v", got)
	}
	if !GetEnvBool("FINKG_TEST_BOOL", false) {
		t.Fatalf("GetEnvBool = false")
	}
	if GetEnvBool("FINKG_TEST_BAD_BOOL", false) {
		t.Fatalf("GetEnvBool accepted %q", "yes")
	}
}
