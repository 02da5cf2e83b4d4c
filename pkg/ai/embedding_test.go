package ai

import "testing"

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		name string
		in   int
	}{
		{name: "shorter is padded", in: 8},
		{name: "exact is kept", in: EmbeddingDimensions},
		{name: "longer is truncated", in: EmbeddingDimensions + 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vec := make([]float32, tc.in)
			for i := range vec {
				vec[i] = 1
			}
			got := FitDimensions(vec)
			if len(got) != EmbeddingDimensions {
				t.Fatalf("len = %d, want %d", len(got), EmbeddingDimensions)
			}
			if got[0] != 1 {
				t.Fatalf("first value lost")
			}
			if tc.in < EmbeddingDimensions && got[tc.in] != 0 {
				t.Fatalf("padding is not zero")
			}
		})
	}
}
