// Package answer generates grounded answers from retrieved document chunks.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docquery/internal/config"
	"docquery/internal/llm"
	"docquery/internal/models"
	"docquery/pkg/utils"
)

// InsufficientContextAnswer is returned when nothing relevant is indexed.
// No completion request is made in that case.
const InsufficientContextAnswer = "I don't have enough information in the indexed documents to answer that question."

const systemPrompt = `You are a document question answering assistant.
Answer the question using ONLY the provided context excerpts.
If the context does not contain the answer, say you do not know.
Cite the source filenames you used.`

// Retriever returns the chunks most similar to a question.
type Retriever interface {
	Query(ctx context.Context, question string, k int) ([]*models.Retrieved, error)
}

// Service answers questions over the indexed documents.
type Service struct {
	retriever Retriever
	client    llm.Client
	cfg       *config.RAGConfig
	logger    *zap.Logger
}

// NewService creates an answer service.
func NewService(retriever Retriever, client llm.Client, cfg *config.RAGConfig, logger *zap.Logger) *Service {
	return &Service{
		retriever: retriever,
		client:    client,
		cfg:       cfg,
		logger:    logger,
	}
}

// Answer retrieves the topK most relevant chunks, asks the completion model
// for a grounded answer, and reports which chunks informed it. When nothing
// is retrieved the fixed insufficient context answer is returned without
// calling the model.
func (s *Service) Answer(ctx context.Context, question string, topK int) (*models.Answer, error) {
	retrieved, err := s.retriever.Query(ctx, question, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if len(retrieved) == 0 {
		return &models.Answer{
			Answer:     InsufficientContextAnswer,
			Sources:    []models.Source{},
			Confidence: models.ConfidenceLow,
		}, nil
	}

	prompt, used := s.buildPrompt(question, retrieved)
	reply, err := s.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	sources := make([]models.Source, len(used))
	for i, r := range used {
		sources[i] = models.Source{
			Filename:   r.Chunk.Filename,
			ChunkIndex: r.Chunk.Index,
			Snippet:    utils.Snippet(r.Chunk.Content, s.cfg.SnippetLength),
			Score:      r.Score,
		}
	}

	ans := &models.Answer{
		Answer:     strings.TrimSpace(reply),
		Sources:    sources,
		Confidence: s.confidence(used[0].Score),
	}

	if s.logger != nil {
		s.logger.Debug("question answered",
			zap.Int("sources", len(sources)),
			zap.Float64("top_score", used[0].Score),
			zap.String("confidence", string(ans.Confidence)))
	}
	return ans, nil
}

// buildPrompt assembles the user prompt from retrieved chunks, best first,
// stopping before MaxPromptChars is exceeded. At least one chunk is always
// included. Returns the prompt and the chunks that made it in.
func (s *Service) buildPrompt(question string, retrieved []*models.Retrieved) (string, []*models.Retrieved) {
	var b strings.Builder
	b.WriteString("Context excerpts:\n\n")

	budget := s.cfg.MaxPromptChars
	var used []*models.Retrieved
	for _, r := range retrieved {
		section := fmt.Sprintf("[%s, part %d]\n%s\n\n", r.Chunk.Filename, r.Chunk.Index+1, r.Chunk.Content)
		if len(used) > 0 && b.Len()+len(section) > budget {
			break
		}
		b.WriteString(section)
		used = append(used, r)
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String(), used
}

func (s *Service) confidence(topScore float64) models.Confidence {
	switch {
	case topScore >= s.cfg.HighConfidence:
		return models.ConfidenceHigh
	case topScore >= s.cfg.MediumConfidence:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
