package neo4j

import (
	"strings"
	"unicode"
)

const defaultRelationshipLabel = "RELATED_TO"

var relationSuffixes = []string{"relationship", "relation", "关系"}

// RelationshipLabel turns a free-form edge type into a relationship type.
// A trailing "relation", "relationship" or "关系" is removed, letters are
// upper-cased and every other rune that is not a letter or digit becomes an
// underscore. Runs of underscores are collapsed. An empty result maps to
// RELATED_TO.
//
//	"Causal Relation" -> "CAUSAL"
//	"股权关系"          -> "股权"
//	"Supply-Chain"    -> "SUPPLY_CHAIN"
func RelationshipLabel(relType string) string {
	s := strings.TrimSpace(relType)
	lower := strings.ToLower(s)
	for _, suffix := range relationSuffixes {
		if strings.HasSuffix(lower, suffix) {
			s = s[:len(s)-len(suffix)]
			break
		}
	}

	var b strings.Builder
	lastUnderscore := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	label := strings.TrimRight(b.String(), "_")
	if label == "" {
		return defaultRelationshipLabel
	}
	return label
}

// quoteIdentifier backtick-quotes a Cypher identifier.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
