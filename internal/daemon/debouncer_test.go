package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type emitted struct {
	reason string
	count  int
}

func startDebouncer(t *testing.T, quiet, maxDelay time.Duration) (*Debouncer, <-chan emitted) {
	t.Helper()
	d, err := NewDebouncer(quiet, maxDelay)
	require.NoError(t, err)

	out := make(chan emitted, 10)
	go d.Run(t.Context(), func(reason string, count int) {
		out <- emitted{reason: reason, count: count}
	})

	select {
	case <-d.Ready():
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for debouncer ready")
	}
	return d, out
}

func TestDebouncer_BurstCoalescesToSingleEmit(t *testing.T) {
	d, out := startDebouncer(t, 25*time.Millisecond, 500*time.Millisecond)

	for _, p := range []string{"a.md", "b.md", "c.md", "d.md", "e.md"} {
		d.Request(p)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case got := <-out:
		require.Equal(t, "e.md", got.reason)
		require.Equal(t, 5, got.count)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for emit")
	}

	select {
	case <-out:
		t.Fatal("expected only one emit for burst")
	case <-time.After(75 * time.Millisecond):
	}
}

func TestDebouncer_MaxDelayForcesEmit(t *testing.T) {
	d, out := startDebouncer(t, 50*time.Millisecond, 120*time.Millisecond)

	stop := time.After(400 * time.Millisecond)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case got := <-out:
			require.GreaterOrEqual(t, got.count, 1)
			return
		case <-stop:
			t.Fatal("max delay did not force an emit while requests kept arriving")
		case <-ticker.C:
			d.Request("busy.md")
		}
	}
}

func TestDebouncer_RejectsNonPositiveQuietWindow(t *testing.T) {
	_, err := NewDebouncer(0, time.Second)
	require.Error(t, err)
}

func TestDebouncer_MaxDelayNeverBelowQuietWindow(t *testing.T) {
	d, err := NewDebouncer(time.Second, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, time.Second, d.maxDelay)
}
