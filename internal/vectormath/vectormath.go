// Package vectormath provides similarity, normalisation and re-ranking
// helpers shared by the vector index adapters and embedding services.
package vectormath

import (
	"container/heap"
	"math"
)

// Dot returns the dot product of a and b, or 0 if their lengths differ.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Zero vectors and mismatched lengths yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Project truncates v to dims components and renormalises it. This is the
// Matryoshka-style reduction supported by models trained for it.
// Vectors already at or below dims are only normalised.
func Project(v []float32, dims int) []float32 {
	if dims <= 0 || len(v) <= dims {
		return Normalize(v)
	}
	return Normalize(v[:dims])
}

// FromFloat64 converts a decoded JSON vector.
func FromFloat64(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Candidate is a scored item considered for ranking.
type Candidate struct {
	Index  int
	Score  float64
	Vector []float32
}

// TopK returns the k highest-scoring candidates in descending score order.
// Ties keep input order.
func TopK(cands []Candidate, k int) []Candidate {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	h := &minHeap{}
	heap.Init(h)
	for _, c := range cands {
		if h.Len() < k {
			heap.Push(h, c)
			continue
		}
		if better(c, (*h)[0]) {
			heap.Pop(h)
			heap.Push(h, c)
		}
	}
	out := make([]Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Candidate)
	}
	return out
}

// better orders by score, then by lower input index.
func better(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

type minHeap []Candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(Candidate)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// MMR re-ranks candidates with maximal marginal relevance. At each step it
// selects the candidate maximising
//
//	lambda*relevance - (1-lambda)*max(similarity to already selected)
//
// and returns up to k candidates in selection order. Candidates must carry
// their vectors; relevance is the candidate Score.
func MMR(cands []Candidate, k int, lambda float64) []Candidate {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	if k > len(cands) {
		k = len(cands)
	}

	remaining := make([]Candidate, len(cands))
	copy(remaining, cands)
	selected := make([]Candidate, 0, k)
	// maxSim[i] tracks the highest similarity of remaining[i] to any selected item.
	maxSim := make([]float64, len(remaining))
	for i := range maxSim {
		maxSim[i] = math.Inf(-1)
	}

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range remaining {
			redundancy := 0.0
			if len(selected) > 0 {
				redundancy = maxSim[i]
			}
			score := lambda*c.Score - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		pick := remaining[best]
		selected = append(selected, pick)
		remaining = append(remaining[:best], remaining[best+1:]...)
		maxSim = append(maxSim[:best], maxSim[best+1:]...)

		for i, c := range remaining {
			if s := Cosine(c.Vector, pick.Vector); s > maxSim[i] {
				maxSim[i] = s
			}
		}
	}
	return selected
}
