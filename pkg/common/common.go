package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Property keys that every extracted node or edge carries.
const (
	PropSource           = "source"
	PropProjectID        = "project_id"
	PropContext          = "context"
	PropExtractionMethod = "extraction_method"
	PropRaw              = "raw"
)

// SourceLLM tags nodes and edges produced by the language model.
const SourceLLM = "llm"

// NodeType distinguishes the two kinds of graph primitives that are
// extracted from announcement text. On the wire it is encoded as an integer
// (0 for entities, 1 for events).
type NodeType int

const (
	NodeTypeEntity NodeType = 0
	NodeTypeEvent  NodeType = 1
)

// String returns a human readable label for the node type.
func (t NodeType) String() string {
	if t == NodeTypeEvent {
		return "event"
	}
	return "entity"
}

// ParseNodeType accepts the integer codes as well as the textual labels that
// models tend to return instead of them.
func ParseNodeType(s string) (NodeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "entity", "实体":
		return NodeTypeEntity, nil
	case "1", "event", "事件":
		return NodeTypeEvent, nil
	}
	return NodeTypeEntity, fmt.Errorf("unknown node type %q", s)
}

// UnmarshalJSON decodes a node type from either a number or a string.
func (t *NodeType) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = NodeTypeEntity
		return nil
	}

	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		switch int(v) {
		case 0:
			*t = NodeTypeEntity
		case 1:
			*t = NodeTypeEvent
		default:
			return fmt.Errorf("unknown node type %v", v)
		}
		return nil
	case string:
		parsed, err := ParseNodeType(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	return fmt.Errorf("unsupported node type value %s", string(b))
}

// Properties is the open string-to-string mapping attached to nodes and
// edges. Decoding is lenient: non-string values are stringified and a JSON
// encoded string is parsed, falling back to {"raw": s}.
type Properties map[string]string

// UnmarshalJSON implements the lenient decoding described on Properties.
func (p *Properties) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*p = Properties{}
		return nil
	}

	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case map[string]any:
		*p = propertiesFromMap(v)
	case string:
		*p = ParseProperties(v)
	default:
		*p = Properties{PropRaw: stringify(v)}
	}
	return nil
}

// ParseProperties turns a string that may hold a JSON object into
// Properties. Anything that is not an object is kept under the "raw" key.
func ParseProperties(s string) Properties {
	s = strings.TrimSpace(s)
	if s == "" {
		return Properties{}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return propertiesFromMap(obj)
	}
	return Properties{PropRaw: s}
}

// Clone returns a copy that can be modified without touching p.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p)+4)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ToMap converts the properties into a map usable as a driver parameter.
func (p Properties) ToMap() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func propertiesFromMap(m map[string]any) Properties {
	out := make(Properties, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = stringify(v)
	}
	return out
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// Node is an entity or event extracted from announcement text.
//
// Key carries the semantic role: the event type for events and the
// argument role for entities.
type Node struct {
	ID         string     `json:"id"`
	Type       NodeType   `json:"type"`
	Value      string     `json:"value"`
	Key        string     `json:"key"`
	Properties Properties `json:"properties"`
}

// Edge is a directed relation between two nodes of the same project.
type Edge struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	Value      string     `json:"value"`
	EventRel   string     `json:"eventRel"`
	Properties Properties `json:"properties"`
}

// NodeSummary is the compact node representation that is embedded into
// edge responses.
type NodeSummary struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Value string   `json:"value"`
	Key   string   `json:"key"`
}

// Summary returns the compact representation of n.
func (n Node) Summary() NodeSummary {
	return NodeSummary{ID: n.ID, Type: n.Type, Value: n.Value, Key: n.Key}
}

// EdgeWithNodes is an edge with its endpoints denormalized.
type EdgeWithNodes struct {
	Edge
	FromNode NodeSummary `json:"from_node"`
	ToNode   NodeSummary `json:"to_node"`
}

// WithNodes pairs every edge with its endpoint summaries. Edges whose
// endpoints are not in nodes are left out.
func WithNodes(edges []Edge, nodes []Node) []EdgeWithNodes {
	byID := NodesByID(nodes)
	out := make([]EdgeWithNodes, 0, len(edges))
	for _, e := range edges {
		from, okFrom := byID[e.From]
		to, okTo := byID[e.To]
		if !okFrom || !okTo {
			continue
		}
		out = append(out, EdgeWithNodes{Edge: e, FromNode: from.Summary(), ToNode: to.Summary()})
	}
	return out
}

// NodesByID indexes nodes by their ID. Later duplicates win.
func NodesByID(nodes []Node) map[string]Node {
	out := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out
}

// Announcement is a published company announcement used as extraction input.
type Announcement struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Date     time.Time `json:"date"`
	StockNum string    `json:"stock_num"`
}

// ErrInvalidRelationMode is returned for relation modes other than causal,
// temporal and general.
var ErrInvalidRelationMode = errors.New("invalid relation mode")

// RelationMode selects the relation extraction pass. It controls both the
// prompt and which stored edges a pass replaces.
type RelationMode string

const (
	RelationCausal   RelationMode = "causal"
	RelationTemporal RelationMode = "temporal"
	RelationGeneral  RelationMode = "general"
)

// ParseRelationMode maps user input to a RelationMode. An empty string
// selects the general pass.
func ParseRelationMode(s string) (RelationMode, error) {
	switch RelationMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RelationGeneral:
		return RelationGeneral, nil
	case RelationCausal:
		return RelationCausal, nil
	case RelationTemporal:
		return RelationTemporal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRelationMode, s)
}

// Scoped reports whether the pass only replaces edges it produced itself.
func (m RelationMode) Scoped() bool {
	return m == RelationCausal || m == RelationTemporal
}

// ID is an opaque identifier that clients may send either as a JSON string
// or as a JSON number.
type ID string

// UnmarshalJSON accepts strings and numbers.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Text is a string field of a model reply. Models sometimes answer with a
// number or a bool where text is expected, e.g. an amount or a year; those
// are kept in their JSON literal form. Objects and arrays are stored as
// compact JSON.
type Text string

// UnmarshalJSON accepts any JSON value.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*t = Text(stringify(v))
	return nil
}

// String returns the text with surrounding whitespace removed.
func (t Text) String() string {
	return strings.TrimSpace(string(t))
}
