package usecase

import (
	"context"
	"fmt"
	"time"

	"FolioSim/internal/domain/models"
	domrepo "FolioSim/internal/domain/repository"
	xhttp "FolioSim/pkg/http"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 10
)

// HistoryUseCase serves recent runs and archived summaries.
type HistoryUseCase struct {
	history domrepo.HistoryStore
	archive domrepo.RunArchive
}

func NewHistoryUseCase(history domrepo.HistoryStore, archive domrepo.RunArchive) *HistoryUseCase {
	return &HistoryUseCase{history: history, archive: archive}
}

// Recent returns up to limit runs, newest first.
func (uc *HistoryUseCase) Recent(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	runs, err := uc.history.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	return runs, nil
}

// Archived queries the archive for summaries within [from, to].
func (uc *HistoryUseCase) Archived(ctx context.Context, from, to time.Time, limit int) ([]*models.RunSummary, error) {
	if to.Before(from) {
		return nil, xhttp.BadRequestErrorf("archive window: to %s precedes from %s",
			to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	rows, err := uc.archive.Query(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}

	return rows, nil
}
