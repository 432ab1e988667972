package vectormath

// Rank scores every vector against query by cosine similarity and returns
// the best k. With diversity set, the best fetchK are re-ranked by MMR
// first. Candidate.Index refers to the position in vectors.
func Rank(query []float32, vectors [][]float32, k, fetchK int, diversity bool, lambda float64) []Candidate {
	if k <= 0 || len(vectors) == 0 {
		return nil
	}

	cands := make([]Candidate, len(vectors))
	for i, v := range vectors {
		cands[i] = Candidate{Index: i, Score: Cosine(query, v), Vector: v}
	}

	if !diversity {
		return TopK(cands, k)
	}
	if fetchK < k {
		fetchK = k
	}
	return MMR(TopK(cands, fetchK), k, lambda)
}
