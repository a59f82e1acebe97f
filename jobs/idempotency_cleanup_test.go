package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubPurger struct {
	olderThan time.Duration
	calls     int
	err       error
}

func (s *stubPurger) Cleanup(ctx context.Context, olderThan time.Duration) error {
	s.calls++
	s.olderThan = olderThan
	return s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIdempotencyCleanupPurgesWithRetention(t *testing.T) {
	purger := &stubPurger{}
	h := NewIdempotencyCleanupHandler(purger, discardLogger(), nil)

	task, err := NewIdempotencyCleanupTask()
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), task))
	require.Equal(t, 1, purger.calls)
	require.Equal(t, 24*time.Hour, purger.olderThan)
}

func TestIdempotencyCleanupDefaultsMissingRetention(t *testing.T) {
	purger := &stubPurger{}
	h := NewIdempotencyCleanupHandler(purger, discardLogger(), nil)

	body, err := json.Marshal(IdempotencyCleanupPayload{})
	require.NoError(t, err)
	task := asynq.NewTask(TaskIdempotencyCleanup, body)

	require.NoError(t, h.Handle(context.Background(), task))
	require.Equal(t, 24*time.Hour, purger.olderThan)
}

func TestIdempotencyCleanupPropagatesStoreError(t *testing.T) {
	purger := &stubPurger{err: errors.New("connection reset")}
	h := NewIdempotencyCleanupHandler(purger, discardLogger(), nil)

	task, err := NewIdempotencyCleanupTask()
	require.NoError(t, err)

	require.Error(t, h.Handle(context.Background(), task))
}
