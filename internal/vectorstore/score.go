package vectorstore

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// cosine returns the cosine similarity of a and b, or 0 when the vectors
// differ in length or one of them is zero.
func cosine(a, b []float32) float64 {
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
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// terms splits text into lower-cased words of two or more letters or digits.
func terms(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) >= 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

// overlap is the fraction of query terms that appear in text.
func overlap(query map[string]struct{}, text string) float64 {
	if len(query) == 0 {
		return 0
	}
	doc := terms(text)
	hits := 0
	for w := range query {
		if _, ok := doc[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// candidate is a document with its insertion order, used for ranking.
type candidate struct {
	doc Document
	seq int64
}

// rank sorts by score, newest first on ties, and keeps at most limit.
func rank(cs []candidate, limit int) []Document {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].doc.Score != cs[j].doc.Score {
			return cs[i].doc.Score > cs[j].doc.Score
		}
		return cs[i].seq > cs[j].seq
	})
	if limit > 0 && len(cs) > limit {
		cs = cs[:limit]
	}
	out := make([]Document, len(cs))
	for i, c := range cs {
		out[i] = c.doc
	}
	return out
}

// lastN keeps the final n entries of an oldest-first slice.
func lastN[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

// prepare fills a document's ID and timestamp and copies its metadata.
func prepare(d Document, now time.Time) Document {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	meta := make(map[string]string, len(d.Metadata))
	for k, v := range d.Metadata {
		meta[k] = v
	}
	d.Metadata = meta
	d.Score = 0
	return d
}
