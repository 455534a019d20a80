package timer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiry struct {
	code int64
	gen  uint64
}

type recordingListener struct {
	checkpoints chan int
	expiries    chan expiry
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		checkpoints: make(chan int, 16),
		expiries:    make(chan expiry, 4),
	}
}

func (r *recordingListener) Checkpoint(code int64, remaining int) {
	r.checkpoints <- remaining
}

func (r *recordingListener) Expired(ctx context.Context, code int64, gen uint64) error {
	r.expiries <- expiry{code: code, gen: gen}
	return nil
}

func (r *recordingListener) drainCheckpoints() []int {
	var out []int
	for {
		select {
		case v := <-r.checkpoints:
			out = append(out, v)
		default:
			return out
		}
	}
}

func setupArena(t *testing.T) (*Arena, *clockwork.FakeClock, *recordingListener) {
	logger, _ := test.NewNullLogger()
	clock := clockwork.NewFakeClock()
	a := NewArena(clock, 3*time.Second, 10*time.Second, logger)
	l := newRecordingListener()
	a.SetListener(l)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Stop(ctx)
	})
	return a, clock, l
}

// advance moves the clock and waits until the countdown has processed the tick and parked on its
// next timer.
func advance(t *testing.T, clock *clockwork.FakeClock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clock.Advance(d)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}

func waitParked(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}

func TestCountdownCheckpointsAndExpiry(t *testing.T) {
	a, clock, l := setupArena(t)

	gen := a.Arm(42, 30)
	waitParked(t, clock)

	advance(t, clock, 3*time.Second) // remaining 30
	assert.Equal(t, []int{30}, l.drainCheckpoints())

	advance(t, clock, 10*time.Second) // remaining 20
	assert.Empty(t, l.drainCheckpoints())

	advance(t, clock, 10*time.Second) // remaining 10
	assert.Equal(t, []int{10}, l.drainCheckpoints())
	assert.Empty(t, l.expiries)

	clock.Advance(10 * time.Second) // remaining 0
	select {
	case e := <-l.expiries:
		assert.Equal(t, expiry{code: 42, gen: gen}, e)
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not expire")
	}
	require.Eventually(t, func() bool { return a.Len() == 0 }, time.Second, 5*time.Millisecond)
}

// A 15 second limit expires on the third tick, 23 seconds after arming.
func TestCountdownFifteenSeconds(t *testing.T) {
	a, clock, l := setupArena(t)

	a.Arm(7, 15)
	waitParked(t, clock)

	advance(t, clock, 3*time.Second)
	advance(t, clock, 10*time.Second)
	assert.Empty(t, l.expiries)
	assert.Empty(t, l.drainCheckpoints())

	clock.Advance(10 * time.Second)
	select {
	case e := <-l.expiries:
		assert.Equal(t, int64(7), e.code)
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not expire")
	}
}

func TestCancelStopsCountdown(t *testing.T) {
	a, clock, l := setupArena(t)

	gen := a.Arm(1, 30)
	waitParked(t, clock)
	require.True(t, a.IsCurrent(1, gen))

	a.Cancel(1)
	assert.False(t, a.IsCurrent(1, gen))
	assert.False(t, a.Active(1))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 0))

	clock.Advance(time.Minute)
	assert.Empty(t, l.drainCheckpoints())
	assert.Empty(t, l.expiries)

	// cancelling twice is harmless
	a.Cancel(1)
}

func TestArmReplacesPreviousCountdown(t *testing.T) {
	a, _, _ := setupArena(t)

	first := a.Arm(5, 60)
	second := a.Arm(5, 60)

	assert.NotEqual(t, first, second)
	assert.False(t, a.IsCurrent(5, first))
	assert.True(t, a.IsCurrent(5, second))
	assert.Equal(t, 1, a.Len())

	a.Arm(6, 60)
	assert.Equal(t, 2, a.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
	assert.Equal(t, 0, a.Len())
}

func TestDiscardIgnoresReplacedGeneration(t *testing.T) {
	a, _, _ := setupArena(t)

	old := a.Arm(9, 60)
	current := a.Arm(9, 60)

	a.Discard(9, old)
	assert.True(t, a.IsCurrent(9, current))

	a.Discard(9, current)
	assert.False(t, a.Active(9))
}
