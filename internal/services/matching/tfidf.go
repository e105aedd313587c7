package matching

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Tokenize lower-cases s, splits on anything that is not a letter or digit,
// and drops tokens shorter than two characters and English stop words.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

type term struct {
	idx int
	w   float64
}

// Scores returns the cosine similarity between query and each candidate under
// TF-IDF weights fitted on the query plus all candidates. IDF is smoothed:
// ln((1+n)/(1+df)) + 1. Vectors are L2 normalised. Results lie in [0,1].
func Scores(query string, candidates []string) []float64 {
	if len(candidates) == 0 {
		return []float64{}
	}

	docs := make([][]string, 0, len(candidates)+1)
	docs = append(docs, Tokenize(query))
	for _, c := range candidates {
		docs = append(docs, Tokenize(c))
	}

	df := map[string]int{}
	for _, d := range docs {
		seen := map[string]struct{}{}
		for _, t := range d {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	vocab := make([]string, 0, len(df))
	for t := range df {
		vocab = append(vocab, t)
	}
	sort.Strings(vocab)
	index := make(map[string]int, len(vocab))
	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, t := range vocab {
		index[t] = i
		idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	vecs := make([][]term, len(docs))
	for i, d := range docs {
		vecs[i] = vectorize(d, index, idf)
	}

	out := make([]float64, len(candidates))
	for i := range candidates {
		out[i] = cosine(vecs[0], vecs[i+1])
	}
	return out
}

func vectorize(tokens []string, index map[string]int, idf []float64) []term {
	tf := map[int]float64{}
	for _, t := range tokens {
		tf[index[t]]++
	}
	v := make([]term, 0, len(tf))
	var norm float64
	for idx, c := range tf {
		w := c * idf[idx]
		v = append(v, term{idx: idx, w: w})
		norm += w * w
	}
	sort.Slice(v, func(a, b int) bool { return v[a].idx < v[b].idx })
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i].w /= norm
	}
	return v
}

// cosine of two L2-normalised sparse vectors sorted by index.
func cosine(a, b []term) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].idx == b[j].idx:
			dot += a[i].w * b[j].w
			i++
			j++
		case a[i].idx < b[j].idx:
			i++
		default:
			j++
		}
	}
	switch {
	case dot < 0:
		return 0
	case dot > 1:
		return 1
	}
	return dot
}
