package failure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"reelsync/backend/internal/event"
	"reelsync/backend/internal/worker"
)

// Replayer resubmits an event on a known route without classifying it again.
type Replayer interface {
	Replay(ctx context.Context, route string, e event.InboundEvent) error
}

type Service struct {
	repo     Repository
	replayer Replayer
}

func NewService(repo Repository, replayer Replayer) *Service {
	return &Service{repo: repo, replayer: replayer}
}

// SetReplayer breaks the construction cycle between the router, which
// records failures, and the dispatcher that replays them.
func (s *Service) SetReplayer(r Replayer) {
	s.replayer = r
}

// RecordFailure never returns an error; a task that cannot be recorded is
// only logged.
func (s *Service) RecordFailure(ctx context.Context, t worker.Task, cause error) {
	payload, err := json.Marshal(t.Event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode failed event", "error", err)
		return
	}

	f := &FailedEvent{
		ExternalID: t.Event.ExternalID,
		SenderID:   t.Event.SenderID,
		Route:      t.Route,
		Payload:    payload,
	}
	if cause != nil {
		f.Error = cause.Error()
	}

	if err := s.repo.Save(ctx, f); err != nil {
		slog.ErrorContext(ctx, "failed to record failed event", "error", err, "route", t.Route)
		return
	}
	slog.WarnContext(ctx, "failed event recorded", "id", f.ID, "route", t.Route, "retries", f.Retries)
}

func (s *Service) List(ctx context.Context) ([]FailedEvent, error) {
	return s.repo.List(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Retry resubmits the stored event and removes the row once the submit is
// accepted. The replayed task runs concurrently; if it fails again before the
// row is removed, the bumped row is kept. An event that was applied since it
// failed is not replayed and its row is dropped.
func (s *Service) Retry(ctx context.Context, id string) error {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	var e event.InboundEvent
	if err := json.Unmarshal(f.Payload, &e); err != nil {
		return fmt.Errorf("%w: stored payload: %v", event.ErrMalformedPayload, err)
	}

	if s.replayer == nil {
		return fmt.Errorf("retry %s: no replayer configured", id)
	}
	replayErr := s.replayer.Replay(ctx, f.Route, e)
	if replayErr != nil && !errors.Is(replayErr, event.ErrDuplicate) {
		return fmt.Errorf("replay %s: %w", id, replayErr)
	}

	deleted, err := s.repo.Delete(ctx, id, f.Retries)
	if err != nil {
		return err
	}
	if !deleted {
		slog.WarnContext(ctx, "failed event changed during retry, row kept", "id", id)
	}
	return replayErr
}
