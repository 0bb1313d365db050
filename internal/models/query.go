package models

import (
	"fmt"
	"strings"
)

// QueryRequest is a question against the indexed documents. Not persisted.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate checks the question and normalizes TopK. A zero TopK becomes
// defaultK; values above maxK are clamped to maxK.
func (q *QueryRequest) Validate(defaultK, maxK int) error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrValidation)
	}
	if q.TopK < 0 {
		return fmt.Errorf("%w: top_k cannot be negative", ErrValidation)
	}
	if q.TopK == 0 {
		q.TopK = defaultK
	}
	if q.TopK > maxK {
		q.TopK = maxK
	}
	return nil
}

// Retrieved is a single retrieval hit: a chunk with its similarity score.
type Retrieved struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}
