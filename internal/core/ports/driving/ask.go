package driving

import (
	"context"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// AskService answers questions from the indexed corpus.
type AskService interface {
	// Ask answers one question. It fails only for invalid queries or when
	// retrieval itself cannot run; provider failures degrade the answer
	// instead (Answer.State == domain.StateDegradedFallback).
	Ask(ctx context.Context, question string, opts domain.AskOptions) (*domain.Answer, error)

	// Quality aggregates metrics over recent answers.
	Quality() domain.QualitySummary
}
