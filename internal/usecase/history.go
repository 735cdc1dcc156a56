package usecase

import (
	"context"
	"fmt"
	"time"

	"TrustPulse/internal/domain/models"
	domrepo "TrustPulse/internal/domain/repository"
)

// HistoryUseCase provides lookback access to persisted normalized scores.
type HistoryUseCase struct {
	store domrepo.HistoryStore
}

func NewHistoryUseCase(store domrepo.HistoryStore) *HistoryUseCase {
	return &HistoryUseCase{store: store}
}

type GetHistoryParams struct {
	SignalKey string
	From      time.Time
	To        time.Time
	Limit     int
}

type GetHistoryResult struct {
	SignalKey string
	From      time.Time
	To        time.Time
	Count     int
	Scores    []*models.NormalizedScore
}

func (uc *HistoryUseCase) GetHistory(ctx context.Context, p GetHistoryParams) (*GetHistoryResult, error) {
	if p.SignalKey == "" {
		return nil, fmt.Errorf("signal key required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 600
	}
	if p.Limit > 5000 {
		p.Limit = 5000
	}

	scores, err := uc.store.QueryScores(ctx, p.SignalKey, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	return &GetHistoryResult{
		SignalKey: p.SignalKey,
		From:      p.From,
		To:        p.To,
		Count:     len(scores),
		Scores:    scores,
	}, nil
}
