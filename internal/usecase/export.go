package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dainage/internal/ports"
)

// ExportUseCase coordinates reading completed entries and pushing them to a
// reporting sink.
type ExportUseCase struct {
	Log    *slog.Logger
	Source ports.ExportSource
	Sink   ports.Sink
}

// Run exports entries completed at or after since.
func (uc *ExportUseCase) Run(ctx context.Context, since time.Time) error {
	if uc.Source == nil || uc.Sink == nil {
		return errors.New("usecase not initialized: missing dependencies")
	}
	uc.Log.Info("fetching completed entries", slog.Time("since", since))

	entries, err := uc.Source.ListCompletedSince(ctx, since)
	if err != nil {
		return err
	}
	uc.Log.Info("fetched completed entries", slog.Int("count", len(entries)))

	if len(entries) == 0 {
		uc.Log.Info("no entries to export")
		return nil
	}

	if err := uc.Sink.ExportEntries(ctx, entries); err != nil {
		return err
	}
	uc.Log.Info("export completed", slog.Int("count", len(entries)))
	return nil
}
