package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

const fence = "```"

func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

// GenerateSchema creates a JSON Schema from the given Go type.
// It uses reflection to inspect the type structure and generates
// a schema suitable for describing structured output to a model.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

// SchemaString renders the schema of value as indented JSON so it can be
// embedded into a prompt.
func SchemaString(value any) string {
	b, err := json.MarshalIndent(GenerateSchema(value), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ExtractJSONBlock returns the payload of the first fenced code block in s.
// A block tagged as json is preferred over an untagged one. Without fences
// the trimmed input is returned unchanged.
func ExtractJSONBlock(s string) string {
	if idx := strings.Index(s, fence+"json"); idx >= 0 {
		return untilFence(s[idx+len(fence)+len("json"):])
	}
	if idx := strings.Index(s, fence); idx >= 0 {
		return untilFence(s[idx+len(fence):])
	}
	return strings.TrimSpace(s)
}

func untilFence(s string) string {
	if end := strings.Index(s, fence); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// DecodeModelJSON strips code fences from a model response and decodes the
// payload into out with UnmarshalFlexible.
func DecodeModelJSON(response string, out any) error {
	payload := ExtractJSONBlock(response)
	if payload == "" {
		return fmt.Errorf("empty model response")
	}
	return UnmarshalFlexible(payload, out)
}

// UnmarshalFlexible attempts to unmarshal JSON into the target with multiple fallback strategies.
// It first tries standard JSON unmarshaling, then handles double-encoded JSON strings,
// and finally attempts to repair malformed JSON before parsing.
//
// Example:
//
//	var result MyStruct
//	UnmarshalFlexible(`{"name": "test"}`, &result)           // standard JSON
//	UnmarshalFlexible(`"{\"name\": \"test\"}"`, &result)     // double-encoded
//	UnmarshalFlexible(`{name: "test"}`, &result)             // malformed (repaired)
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, truncate(input, 500))
	}

	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unmarshal failed after repair: %w (input: %s)", err, truncate(input, 500))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
