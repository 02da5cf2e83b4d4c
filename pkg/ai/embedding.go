package ai

// EmbeddingDimensions is the vector size stored for node embeddings. It must
// match the vector column of node_table.
const EmbeddingDimensions = 1536

// FitDimensions truncates or zero-pads vec to EmbeddingDimensions so that
// models with different output sizes can share one column.
func FitDimensions(vec []float32) []float32 {
	if len(vec) == EmbeddingDimensions {
		return vec
	}
	out := make([]float32, EmbeddingDimensions)
	copy(out, vec)
	return out
}
