// internal/enrich/worker_test.go
package enrich

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github-issue-ranker/internal/database"
)

// MockStore is a mock of the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListIssuesPendingEnrichment(ctx context.Context, arg database.ListIssuesPendingEnrichmentParams) ([]database.ListIssuesPendingEnrichmentRow, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]database.ListIssuesPendingEnrichmentRow), args.Error(1)
}
func (m *MockStore) SetIssueAnalysis(ctx context.Context, arg database.SetIssueAnalysisParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockStore) SetIssueEnrichmentError(ctx context.Context, arg database.SetIssueEnrichmentErrorParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

type analyzerFunc func(ctx context.Context, text string) (string, error)

func (f analyzerFunc) Analyze(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

func pendingRows(n int) []database.ListIssuesPendingEnrichmentRow {
	rows := make([]database.ListIssuesPendingEnrichmentRow, n)
	for i := range rows {
		rows[i] = database.ListIssuesPendingEnrichmentRow{
			ID:          int64(i + 1),
			Description: pgtype.Text{String: "the build fails on arm64", Valid: true},
		}
	}
	return rows
}

func newTestWorker(store Store, analyzer Analyzer, opts Options) *Worker {
	if opts.Concurrency == 0 {
		opts.Concurrency = 4
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 100
	}
	if opts.Interval == 0 {
		opts.Interval = time.Hour
	}
	w := NewWorker(store, analyzer, slog.New(slog.NewTextHandler(io.Discard, nil)), opts)
	w.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

func TestWorker_RunOnce_Success(t *testing.T) {
	store := new(MockStore)
	analyzer := analyzerFunc(func(ctx context.Context, text string) (string, error) {
		return "needs a repro", nil
	})
	w := newTestWorker(store, analyzer, Options{BatchSize: 10, RetryAfter: time.Hour})

	store.On("ListIssuesPendingEnrichment", mock.Anything, database.ListIssuesPendingEnrichmentParams{
		RetryBefore: time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC),
		RowLimit:    10,
	}).Return(pendingRows(2), nil).Once()
	store.On("SetIssueAnalysis", mock.Anything, mock.MatchedBy(func(p database.SetIssueAnalysisParams) bool {
		return p.ID == 1 && p.LlmAnalysis.String == "needs a repro" && p.Description.String == "the build fails on arm64"
	})).Return(int64(1), nil).Once()
	store.On("SetIssueAnalysis", mock.Anything, mock.MatchedBy(func(p database.SetIssueAnalysisParams) bool {
		return p.ID == 2
	})).Return(int64(0), nil).Once()

	stats, err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Stats{Attempted: 2, Succeeded: 1, Stale: 1}, stats)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "SetIssueEnrichmentError", mock.Anything, mock.Anything)
}

func TestWorker_RunOnce_AllCallsFail(t *testing.T) {
	store := new(MockStore)
	analyzer := analyzerFunc(func(ctx context.Context, text string) (string, error) {
		return "", &ResponseError{StatusCode: 503, Body: "loading"}
	})
	w := newTestWorker(store, analyzer, Options{})

	store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).Return(pendingRows(3), nil).Once()
	store.On("SetIssueEnrichmentError", mock.Anything, mock.MatchedBy(func(p database.SetIssueEnrichmentErrorParams) bool {
		return p.EnrichmentError.Valid && p.EnrichmentError.String == "inference API returned status 503: loading"
	})).Return(nil).Times(3)

	stats, err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Stats{Attempted: 3, Failed: 3}, stats)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "SetIssueAnalysis", mock.Anything, mock.Anything)
}

func TestWorker_RunOnce_PerCallTimeout(t *testing.T) {
	store := new(MockStore)
	analyzer := analyzerFunc(func(ctx context.Context, text string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	w := newTestWorker(store, analyzer, Options{Timeout: 20 * time.Millisecond})

	store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).Return(pendingRows(2), nil).Once()
	store.On("SetIssueEnrichmentError", mock.Anything, mock.MatchedBy(func(p database.SetIssueEnrichmentErrorParams) bool {
		return p.EnrichmentError.String == context.DeadlineExceeded.Error()
	})).Return(nil).Times(2)

	stats, err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Failed)
	store.AssertExpectations(t)
}

func TestWorker_RunOnce_BoundedConcurrency(t *testing.T) {
	const limit = 3
	var inFlight, peak int32

	store := new(MockStore)
	analyzer := analyzerFunc(func(ctx context.Context, text string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	})
	w := newTestWorker(store, analyzer, Options{Concurrency: limit})

	store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).Return(pendingRows(20), nil).Once()
	store.On("SetIssueAnalysis", mock.Anything, mock.Anything).Return(int64(1), nil)

	stats, err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 20, stats.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(limit))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&peak), int32(1))
}

func TestWorker_RunOnce_StoreErrors(t *testing.T) {
	t.Run("listing fails", func(t *testing.T) {
		store := new(MockStore)
		w := newTestWorker(store, nil, Options{})
		store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).
			Return([]database.ListIssuesPendingEnrichmentRow(nil), errors.New("connection refused")).Once()

		_, err := w.RunOnce(context.Background())

		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("nothing pending", func(t *testing.T) {
		store := new(MockStore)
		w := newTestWorker(store, nil, Options{})
		store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).
			Return([]database.ListIssuesPendingEnrichmentRow{}, nil).Once()

		stats, err := w.RunOnce(context.Background())

		require.NoError(t, err)
		assert.Zero(t, stats)
	})

	t.Run("writing analysis fails", func(t *testing.T) {
		store := new(MockStore)
		analyzer := analyzerFunc(func(ctx context.Context, text string) (string, error) { return "ok", nil })
		w := newTestWorker(store, analyzer, Options{Concurrency: 1})
		store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).Return(pendingRows(1), nil).Once()
		store.On("SetIssueAnalysis", mock.Anything, mock.Anything).Return(int64(0), errors.New("deadlock detected")).Once()

		_, err := w.RunOnce(context.Background())

		assert.ErrorContains(t, err, "deadlock detected")
	})
}

func TestWorker_Notify(t *testing.T) {
	t.Run("never blocks and coalesces", func(t *testing.T) {
		w := newTestWorker(new(MockStore), nil, Options{})

		for range 5 {
			w.Notify()
		}

		assert.Len(t, w.wake, 1)
	})

	t.Run("wakes a running worker", func(t *testing.T) {
		var passes int32
		store := new(MockStore)
		store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { atomic.AddInt32(&passes, 1) }).
			Return([]database.ListIssuesPendingEnrichmentRow{}, nil)
		w := newTestWorker(store, nil, Options{Interval: time.Hour})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			w.Start(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool { return atomic.LoadInt32(&passes) >= 1 }, time.Second, 5*time.Millisecond)
		w.Notify()
		assert.Eventually(t, func() bool { return atomic.LoadInt32(&passes) >= 2 }, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker did not stop after cancel")
		}
	})
}

func TestWorker_Drain(t *testing.T) {
	t.Run("runs until nothing is pending", func(t *testing.T) {
		store := new(MockStore)
		analyzer := analyzerFunc(func(ctx context.Context, text string) (string, error) { return "ok", nil })
		w := newTestWorker(store, analyzer, Options{BatchSize: 2})

		store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).Return(pendingRows(2), nil).Twice()
		store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).Return([]database.ListIssuesPendingEnrichmentRow{}, nil).Once()
		store.On("SetIssueAnalysis", mock.Anything, mock.Anything).Return(int64(1), nil)

		stats, err := w.Drain(context.Background())

		require.NoError(t, err)
		assert.Equal(t, Stats{Attempted: 4, Succeeded: 4}, stats)
		store.AssertExpectations(t)
	})

	t.Run("stops when a pass only fails", func(t *testing.T) {
		store := new(MockStore)
		analyzer := analyzerFunc(func(ctx context.Context, text string) (string, error) { return "", errors.New("unavailable") })
		w := newTestWorker(store, analyzer, Options{})

		store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).Return(pendingRows(2), nil).Once()
		store.On("SetIssueEnrichmentError", mock.Anything, mock.Anything).Return(nil)

		stats, err := w.Drain(context.Background())

		require.NoError(t, err)
		assert.Equal(t, Stats{Attempted: 2, Failed: 2}, stats)
		store.AssertNumberOfCalls(t, "ListIssuesPendingEnrichment", 1)
	})
	t.Run("stops at the deadline while every pass makes progress", func(t *testing.T) {
		store := new(MockStore)
		analyzer := analyzerFunc(func(ctx context.Context, text string) (string, error) {
			time.Sleep(5 * time.Millisecond)
			return "ok", nil
		})
		w := newTestWorker(store, analyzer, Options{BatchSize: 1})

		// The store never runs out of work and ignores ctx.
		store.On("ListIssuesPendingEnrichment", mock.Anything, mock.Anything).Return(pendingRows(1), nil)
		store.On("SetIssueAnalysis", mock.Anything, mock.Anything).Return(int64(1), nil)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		done := make(chan struct{})
		var (
			stats Stats
			err   error
		)
		go func() {
			defer close(done)
			stats, err = w.Drain(ctx)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("drain did not stop at the deadline")
		}
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Positive(t, stats.Succeeded)
	})

	t.Run("cancelled context runs no pass", func(t *testing.T) {
		store := new(MockStore)
		w := newTestWorker(store, analyzerFunc(func(ctx context.Context, text string) (string, error) { return "ok", nil }), Options{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		stats, err := w.Drain(ctx)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, stats)
		store.AssertNotCalled(t, "ListIssuesPendingEnrichment", mock.Anything, mock.Anything)
	})
}
