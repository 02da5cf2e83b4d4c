package ai

import (
	"strings"
	"testing"
)

type testNode struct {
	Value string `json:"value"`
	Key   string `json:"key"`
}

type testPayload struct {
	Nodes []testNode `json:"nodes"`
}

func TestUnmarshalFlexible_ModelOutputs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{
			name:  "valid json",
			input: `{"nodes":[{"value":"Acme","key":"acquirer"}]}`,
			want:  1,
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{nodes: [{value: 'Acme', key: 'acquirer'}]}`,
			want:  1,
		},
		{
			name:  "trailing comma",
			input: `{"nodes":[{"value":"Acme","key":"acquirer"},]}`,
			want:  1,
		},
		{
			name:  "double encoded",
			input: `"{\"nodes\":[{\"value\":\"Acme\"},{\"value\":\"Beta\"}]}"`,
			want:  2,
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n \"nodes\": [{\"value\": \"Acme\"}]\n}\n",
			want:  1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got testPayload
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if len(got.Nodes) != tc.want {
				t.Fatalf("UnmarshalFlexible() got %d nodes, want %d", len(got.Nodes), tc.want)
			}
			if got.Nodes[0].Value != "Acme" {
				t.Fatalf("UnmarshalFlexible() first value = %q", got.Nodes[0].Value)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got testPayload
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestExtractJSONBlock(t *testing.T) {
	plain := `{"nodes":[{"value":"Acme"}]}`

	tests := []struct {
		name  string
		input string
	}{
		{name: "plain", input: plain},
		{name: "json fence", input: "```json\n" + plain + "\n```"},
		{name: "bare fence", input: "```\n" + plain + "\n```"},
		{name: "fence with prose", input: "Here is the result:\n```json\n" + plain + "\n```\nDone."},
		{name: "unterminated fence", input: "```json\n" + plain},
		{name: "surrounding whitespace", input: "\n\n  " + plain + "  \n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSONBlock(tc.input); got != plain {
				t.Fatalf("ExtractJSONBlock() = %q, want %q", got, plain)
			}
		})
	}
}

func TestDecodeModelJSON_FencedMatchesPlain(t *testing.T) {
	plain := `{"nodes":[{"value":"Acme","key":"acquirer"},{"value":"merger","key":"M&A"}]}`

	var a, b testPayload
	if err := DecodeModelJSON(plain, &a); err != nil {
		t.Fatalf("plain decode error = %v", err)
	}
	if err := DecodeModelJSON("```json\n"+plain+"\n```", &b); err != nil {
		t.Fatalf("fenced decode error = %v", err)
	}
	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("node count differs: %d vs %d", len(a.Nodes), len(b.Nodes))
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			t.Fatalf("node %d differs: %+v vs %+v", i, a.Nodes[i], b.Nodes[i])
		}
	}
}

func TestDecodeModelJSON_Empty(t *testing.T) {
	var got testPayload
	if err := DecodeModelJSON("```json\n```", &got); err == nil {
		t.Fatalf("expected error for empty fenced block")
	}
}

func TestSchemaString(t *testing.T) {
	s := SchemaString(testPayload{})
	if !strings.Contains(s, `"nodes"`) || !strings.Contains(s, `"value"`) {
		t.Fatalf("schema does not describe fields: %s", s)
	}
}
