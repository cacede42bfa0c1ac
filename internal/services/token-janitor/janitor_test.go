package janitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePurger struct {
	mu       sync.Mutex
	refresh  int64
	reset    int64
	outbox   int64
	calls    int
	cutoffs  []time.Time
	resetErr error
}

func take(left *int64, limit int) int64 {
	n := min(*left, int64(limit))
	*left -= n
	return n
}

func (f *fakePurger) PurgeRefreshTokens(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoffs = append(f.cutoffs, cutoff)
	return take(&f.refresh, limit), nil
}

func (f *fakePurger) PurgeResetTokens(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.resetErr != nil {
		return 0, f.resetErr
	}
	return take(&f.reset, limit), nil
}

func (f *fakePurger) PurgeOutbox(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoffs = append(f.cutoffs, cutoff)
	return take(&f.outbox, limit), nil
}

func newUC(p TokenPurger, cfg Config) *Usecase {
	uc := NewUC(p, cfg)
	uc.Now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return uc
}

func TestTick_DrainsInBatches(t *testing.T) {
	p := &fakePurger{refresh: 25, reset: 3, outbox: 12}
	uc := newUC(p, Config{BatchLimit: 10, Retention: 720 * time.Hour})

	res, err := uc.Tick(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 25, res.Refresh)
	assert.EqualValues(t, 3, res.Reset)
	assert.EqualValues(t, 12, res.Outbox)
	// 10 + 10 + 5 for refresh, 3 for reset, 10 + 2 for outbox
	assert.Equal(t, 6, p.calls)

	want := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).Add(-720 * time.Hour)
	for _, c := range p.cutoffs {
		assert.True(t, want.Equal(c))
	}
}

func TestTick_MaxBatchesCapsWork(t *testing.T) {
	p := &fakePurger{refresh: 1000}
	uc := newUC(p, Config{BatchLimit: 10, MaxBatches: 3})

	res, err := uc.Tick(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 30, res.Refresh)
	assert.EqualValues(t, 970, p.refresh)
}

func TestTick_ErrorKeepsPartialResult(t *testing.T) {
	boom := errors.New("db gone")
	p := &fakePurger{refresh: 5, resetErr: boom}
	uc := newUC(p, Config{BatchLimit: 10})

	res, err := uc.Tick(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 5, res.Refresh)
	assert.Zero(t, res.Outbox)
}

func TestRunner_StopsOnCancel(t *testing.T) {
	p := &fakePurger{refresh: 2}
	uc := newUC(p, Config{BatchLimit: 10, Tick: 10 * time.Millisecond})
	r := New(zap.NewNop(), uc)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.EqualValues(t, 0, p.refresh)
	assert.GreaterOrEqual(t, p.calls, 2)
}
