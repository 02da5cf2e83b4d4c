package graph

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/finkg/backend/pkg/common"
)

const contextRadius = 50

// NodeID builds the node identifier from the node type, a salt taken from
// the last six digits of the millisecond clock and short digests of the
// context window and the value. IDs are not stable across runs.
func NodeID(t common.NodeType, value, context string, now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return fmt.Sprintf("%d_%s_%s_%s", int(t), ms, md5Hex(context)[:6], md5Hex(value)[:6])
}

// EdgeID is the digest of the relation content, so identical relations in
// one batch collapse onto the same ID.
func EdgeID(from, to, relType, value string) string {
	return md5Hex(from + "_" + to + "_" + relType + "_" + value)
}

// ContextWindow returns radius characters before and after the first
// occurrence of value in text, or "" when value does not occur.
func ContextWindow(text, value string, radius int) string {
	if value == "" {
		return ""
	}
	idx := strings.Index(text, value)
	if idx < 0 {
		return ""
	}

	runes := []rune(text)
	start := len([]rune(text[:idx]))
	end := start + len([]rune(value))

	from := max(0, start-radius)
	to := min(len(runes), end+radius)
	return string(runes[from:to])
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
