package store

import (
	"encoding/binary"
	"math"
)

// encodeEmbedding packs a float32 vector into a little-endian BLOB for
// storage in a *_vec table. Grounded on the prior sqlitevec backend's
// encode/decode pair, which exists because the vendored driver has no
// native vector column type.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	n := len(buf) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// cosineSimilarity returns the cosine of the angle between a and b, or
// 0 if either is the zero vector or their lengths differ.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// scoredID is a search hit ranked by score, highest first.
type scoredID struct {
	ID    string
	Score float32
}

// topKByScore returns the k highest-scored entries from scores,
// sorted descending. Grounded on the prior sqlitevec backend's
// sortByScoreDesc helper, generalized to cap at k without allocating a
// full sort for large tables (simple insertion since k is always
// small — default search result sizes are under 50).
func topKByScore(scores []scoredID, k int) []scoredID {
	for i := 1; i < len(scores); i++ {
		j := i
		for j > 0 && scores[j-1].Score < scores[j].Score {
			scores[j-1], scores[j] = scores[j], scores[j-1]
			j--
		}
	}
	if k >= 0 && len(scores) > k {
		scores = scores[:k]
	}
	return scores
}
