package embed

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/fincommerce/recommender/internal/pkg/errors"
)

// BM25 parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// SparseVector is a sparse term-weight representation.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// SparseEncoder produces BM25-weighted sparse vectors over a fitted
// vocabulary. The vocabulary assigns each term a stable index and
// carries the document-frequency statistics needed for IDF weighting;
// it persists as JSON so query-time encoding matches indexing-time
// encoding across restarts.
type SparseEncoder struct {
	mu        sync.RWMutex
	vocab     map[string]uint32
	docFreq   map[string]int
	docCount  int
	avgDocLen float64
	topK      int
}

// NewSparseEncoder creates an empty sparse encoder. Fit or LoadVocab
// must run before encoding produces non-empty vectors.
func NewSparseEncoder() *SparseEncoder {
	return &SparseEncoder{
		vocab:   make(map[string]uint32),
		docFreq: make(map[string]int),
		topK:    256, // keep top 256 terms per document
	}
}

// tokenize lowercases and splits text on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Fit builds the vocabulary and document statistics from a corpus.
// Replaces any previous fit.
func (s *SparseEncoder) Fit(corpus []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vocab = make(map[string]uint32)
	s.docFreq = make(map[string]int)
	s.docCount = len(corpus)

	var totalLen int
	for _, doc := range corpus {
		tokens := tokenize(doc)
		totalLen += len(tokens)

		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if _, ok := s.vocab[tok]; !ok {
				s.vocab[tok] = uint32(len(s.vocab))
			}
			if !seen[tok] {
				s.docFreq[tok]++
				seen[tok] = true
			}
		}
	}

	if s.docCount > 0 {
		s.avgDocLen = float64(totalLen) / float64(s.docCount)
	}
}

// idf computes the BM25 inverse document frequency for a term (must
// hold read lock).
func (s *SparseEncoder) idf(term string) float64 {
	df := s.docFreq[term]
	return math.Log(1 + (float64(s.docCount)-float64(df)+0.5)/(float64(df)+0.5))
}

// EncodeDocument produces the BM25-weighted sparse vector for a
// document. Unfitted encoders and unknown-only documents yield empty
// vectors.
func (s *SparseEncoder) EncodeDocument(text string) SparseVector {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.docCount == 0 {
		return SparseVector{}
	}

	tokens := tokenize(text)
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		if _, known := s.vocab[tok]; known {
			tf[tok]++
		}
	}

	docLen := float64(len(tokens))
	norm := bm25K1 * (1 - bm25B + bm25B*docLen/s.avgDocLen)

	type termWeight struct {
		idx    uint32
		weight float32
	}
	weights := make([]termWeight, 0, len(tf))

	for term, freq := range tf {
		f := float64(freq)
		score := s.idf(term) * (f * (bm25K1 + 1)) / (f + norm)
		if score > 0 {
			weights = append(weights, termWeight{idx: s.vocab[term], weight: float32(score)})
		}
	}

	sort.Slice(weights, func(i, j int) bool {
		if weights[i].weight != weights[j].weight {
			return weights[i].weight > weights[j].weight
		}
		return weights[i].idx < weights[j].idx
	})
	if len(weights) > s.topK {
		weights = weights[:s.topK]
	}

	vec := SparseVector{
		Indices: make([]uint32, len(weights)),
		Values:  make([]float32, len(weights)),
	}
	for i, w := range weights {
		vec.Indices[i] = w.idx
		vec.Values[i] = w.weight
	}

	return vec
}

// EncodeQuery produces the sparse query vector: IDF weight per known
// query term.
func (s *SparseEncoder) EncodeQuery(text string) SparseVector {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.docCount == 0 {
		return SparseVector{}
	}

	seen := make(map[string]bool)
	var vec SparseVector

	for _, tok := range tokenize(text) {
		idx, known := s.vocab[tok]
		if !known || seen[tok] {
			continue
		}
		seen[tok] = true
		vec.Indices = append(vec.Indices, idx)
		vec.Values = append(vec.Values, float32(s.idf(tok)))
	}

	return vec
}

// vocabFile is the persisted form of the fitted encoder.
type vocabFile struct {
	Vocab     map[string]uint32 `json:"vocab"`
	DocFreq   map[string]int    `json:"doc_freq"`
	DocCount  int               `json:"doc_count"`
	AvgDocLen float64           `json:"avg_doc_len"`
}

// SaveVocab persists the fitted vocabulary to path.
func (s *SparseEncoder) SaveVocab(path string) error {
	s.mu.RLock()
	file := vocabFile{
		Vocab:     s.vocab,
		DocFreq:   s.docFreq,
		DocCount:  s.docCount,
		AvgDocLen: s.avgDocLen,
	}
	s.mu.RUnlock()

	data, err := json.Marshal(file)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "marshaling vocabulary", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.CodeInternal, "creating vocabulary directory", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.CodeInternal, "writing vocabulary", err)
	}

	return nil
}

// LoadVocab restores a fitted vocabulary from path.
func (s *SparseEncoder) LoadVocab(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "reading vocabulary", err)
	}

	var file vocabFile
	if err := json.Unmarshal(data, &file); err != nil {
		return errors.Wrap(errors.CodeInternal, "unmarshaling vocabulary", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.vocab = file.Vocab
	s.docFreq = file.DocFreq
	s.docCount = file.DocCount
	s.avgDocLen = file.AvgDocLen

	if s.vocab == nil {
		s.vocab = make(map[string]uint32)
	}
	if s.docFreq == nil {
		s.docFreq = make(map[string]int)
	}

	return nil
}

// VocabSize returns the number of known terms.
func (s *SparseEncoder) VocabSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vocab)
}
