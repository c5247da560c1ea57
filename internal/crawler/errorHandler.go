package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"opdsgrab/internal/storage/fails"
	"opdsgrab/internal/types"
)

// ErrorHandler receives failures the crawl recovers from: a language whose
// aggregation stopped early, a book that could not be downloaded.
type ErrorHandler interface {
	Handle(ctx context.Context, target types.Target, err error) error
}

type LoggingHandler struct {
	Logger *slog.Logger
}

func (h *LoggingHandler) Handle(ctx context.Context, target types.Target, err error) error {
	attrs := []any{slog.String("target", target.Type.String())}
	if target.Url != nil {
		attrs = append(attrs, slog.String("url", target.Url.String()))
	}

	h.Logger.WarnContext(ctx, "Recorded failure: "+err.Error(), attrs...)
	return nil
}

type StoringHandler struct {
	RunId     uuid.UUID
	StartTime *time.Time
	Logger    *slog.Logger
	Fails     fails.Repository
}

func (s *StoringHandler) Handle(ctx context.Context, target types.Target, err error) error {
	s.Logger.DebugContext(ctx, "Storing failure of "+target.Type.String()+" target: "+err.Error())

	err = s.Fails.Save(ctx, s.RunId, s.StartTime, target, err)
	if err != nil {
		err = fmt.Errorf("saving fail: %w", err)
	}

	return err
}

func handleError(ctx context.Context, h ErrorHandler, l *slog.Logger, target types.Target, err error) {
	if h == nil {
		return
	}

	if herr := h.Handle(ctx, target, err); herr != nil {
		l.Error("Failed to handle error: " + herr.Error())
	}
}
