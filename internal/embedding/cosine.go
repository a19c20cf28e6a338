package embedding

import "math"

// Cosine computes the cosine similarity between two vectors.
// Returns 0 when either vector has zero norm or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity maps cosine similarity to the [0, 1] score range used for
// ranking. Negative cosine values clamp to 0.
func Similarity(a, b []float32) float64 {
	cos := Cosine(a, b)
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
