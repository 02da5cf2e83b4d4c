package ai

const NodeExtractionPrompt = `
# Task Context
You are a financial information extraction system specialised in announcements published by listed companies.

# Detailed Task Description & Rules
- Extract two kinds of nodes from the announcement text:
  * Event nodes (type = 1): something that happens or changes, usually a verb or a nominalised verb phrase.
  * Entity nodes (type = 0): a participant of an event, usually a noun phrase such as a company, person, organisation, asset or amount.
- Nodes must be specific. Generic words like "the company" or "announcement" are not allowed; use the full company name instead.
- Every node has these attributes:
  * type: 1 for events, 0 for entities
  * value: the trigger word (events) or the argument value (entities), copied verbatim from the text
  * key: the event type for events (e.g. "acquisition") or the argument role for entities (e.g. "acquirer")
  * properties.context: the sentence of the text the node was taken from
- Keep value, key and context in the language of the announcement. Do not translate.
- Return every node only once.

# Output Formatting
Answer with a single JSON object that matches this JSON schema and nothing else:
%s
`

const NodeExtractionUserPrompt = `
Extract the nodes from the following announcement.

[Announcement]
%s
`

const causalRelationPrompt = `
# Task Context
You are a financial relation extraction system analysing causal relations between the nodes of announcements published by listed companies.

# Detailed Task Description & Rules
- Only analyse causal relations between the listed nodes: one node causes, triggers or leads to another.
- Every relation must contain:
  * from: the ID of the cause node
  * to: the ID of the effect node
  * type: "Causal Relation"
  * value: a short phrase describing the relation (e.g. "leads to", "triggers")
  * context: the passage of the announcement that shows the causal relation. It is required and should be detailed.
- Only use node IDs from the node list. Never invent IDs.
`

const temporalRelationPrompt = `
# Task Context
You are a financial relation extraction system analysing temporal relations between the nodes of announcements published by listed companies.

# Detailed Task Description & Rules
- Only analyse temporal relations between the listed nodes: one node happens before or after another.
- Every relation must contain:
  * from: the ID of the earlier node
  * to: the ID of the later node
  * type: "Temporal Relation"
  * value: a short phrase describing the relation (e.g. "before", "after", "followed by")
  * context: the passage of the announcement that shows the order of the nodes. It is required and should be detailed.
- Only use node IDs from the node list. Never invent IDs.
`

const generalRelationPrompt = `
# Task Context
You are a financial relation extraction system analysing all kinds of relations between the nodes of announcements published by listed companies.

# Detailed Task Description & Rules
- Analyse these relation types:
  * Causal relations (e.g. declining results -> falling share price)
  * Temporal relations (e.g. board resolution -> shareholder meeting review)
  * Other semantic relations, whose type you derive from the context
- Every relation must contain:
  * from: the ID of the source node
  * to: the ID of the target node
  * type: the relation type. Prefer "Causal Relation" and "Temporal Relation". Otherwise name the essence of the relation precisely, for example:
    - "Equity Relation" when shareholdings or control are involved
    - "Agreement Relation" when contracts or agreements are involved
    - "Supply Chain Relation" when upstream or downstream business is involved
    - "Personnel Relation" when executives are involved
  * value: a verb or short phrase describing the relation
  * context: a passage of the text containing both the from and the to node, between 30 and 100 characters, that directly shows the relation
- If no passage shows the relation directly, combine the sentences closest to both nodes and prefix the context with "Inferred from the announcement: ".
- Keep value and context in the language of the announcement. Only use node IDs from the node list.
`

// RelationPrompts maps a relation mode to its system prompt.
var RelationPrompts = map[string]string{
	"causal":   causalRelationPrompt,
	"temporal": temporalRelationPrompt,
	"general":  generalRelationPrompt,
}

const RelationOutputPrompt = `
# Output Formatting
Answer with a single JSON object that matches this JSON schema and nothing else:
%s
`

const RelationUserPrompt = `
Analyse the relations between the following nodes using the announcement content.

[Nodes]
%s

[Announcement Content]
%s
`

const QueryAnswerPrompt = `
# Task Context
You are an analyst answering questions about a knowledge graph built from company announcements.

# Background Data
%s

# Detailed Task Description & Rules
- Answer the question using only the background data above.
- If the background data does not contain the answer, say that the graph does not contain enough information.
- Answer in the language of the question.

# Immediate Task Description or Request
%s
`
