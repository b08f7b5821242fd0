// Package features turns sequences into TF-IDF vectors over character n-grams.
//
// The weighting follows the common smoothed form: raw term counts times
// idf = ln((1+n)/(1+df)) + 1, each row scaled to unit L2 norm.
package features

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Vectorizer is a character n-gram TF-IDF model.
type Vectorizer struct {
	minN      int
	maxN      int
	lowercase bool

	vocabulary map[string]int
	terms      []string
	idf        []float64
}

// NewVectorizer creates an unfitted vectorizer for 1..3-grams with lowercasing.
func NewVectorizer(opts ...Option) (*Vectorizer, error) {
	v := &Vectorizer{minN: 1, maxN: 3, lowercase: true}
	for _, opt := range opts {
		opt(v)
	}
	if v.minN < 1 || v.maxN < v.minN {
		return nil, fmt.Errorf("%w: [%d,%d]", ErrInvalidRange, v.minN, v.maxN)
	}
	return v, nil
}

// analyze returns the n-grams of doc in order of appearance, repeats included.
func (v *Vectorizer) analyze(doc string) []string {
	if v.lowercase {
		doc = strings.ToLower(doc)
	}
	doc = strings.Join(strings.Fields(doc), " ")
	runes := []rune(doc)
	var grams []string
	for n := v.minN; n <= v.maxN && n <= len(runes); n++ {
		for i := 0; i+n <= len(runes); i++ {
			grams = append(grams, string(runes[i:i+n]))
		}
	}
	return grams
}

func (v *Vectorizer) counts(doc string) map[string]int {
	c := make(map[string]int)
	for _, g := range v.analyze(doc) {
		c[g]++
	}
	return c
}

// Fit learns the sorted vocabulary and idf weights from docs.
func (v *Vectorizer) Fit(docs []string) error {
	df := make(map[string]int)
	for _, d := range docs {
		for g := range v.counts(d) {
			df[g]++
		}
	}
	if len(df) == 0 {
		return ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for g := range df {
		terms = append(terms, g)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v.terms = terms
	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, g := range terms {
		v.vocabulary[g] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[g]))) + 1
	}
	return nil
}

// Transform maps docs to an len(docs) x len(Vocabulary()) matrix.
// n-grams outside the vocabulary are ignored; a document with none is a zero row.
func (v *Vectorizer) Transform(docs []string) (*mat.Dense, error) {
	if v.vocabulary == nil {
		return nil, ErrNotFitted
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("transform: %w", ErrEmptyVocabulary)
	}
	out := mat.NewDense(len(docs), len(v.terms), nil)
	for i, d := range docs {
		row := out.RawRowView(i)
		for g, c := range v.counts(d) {
			if j, ok := v.vocabulary[g]; ok {
				row[j] = float64(c) * v.idf[j]
			}
		}
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
	}
	return out, nil
}

// FitTransform fits on docs and transforms them.
func (v *Vectorizer) FitTransform(docs []string) (*mat.Dense, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	return v.Transform(docs)
}

// Vocabulary returns the fitted terms in column order.
func (v *Vectorizer) Vocabulary() []string {
	return append([]string(nil), v.terms...)
}

// IDF returns the fitted idf weights in column order.
func (v *Vectorizer) IDF() []float64 {
	return append([]float64(nil), v.idf...)
}
