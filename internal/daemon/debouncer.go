package daemon

import (
	"context"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

// Debouncer coalesces bursts of change notifications into a single emit.
//
// A burst ends when no request arrived for QuietWindow, or MaxDelay after its
// first request, whichever comes first. Run must be called from one goroutine.
type Debouncer struct {
	quiet    time.Duration
	maxDelay time.Duration
	requests chan string

	readyOnce sync.Once
	ready     chan struct{}
}

// NewDebouncer returns a debouncer with the given quiet window and max delay.
func NewDebouncer(quiet, maxDelay time.Duration) (*Debouncer, error) {
	if quiet <= 0 {
		return nil, ferrors.ValidationError("quiet window must be > 0").Build()
	}
	if maxDelay < quiet {
		maxDelay = quiet
	}
	return &Debouncer{
		quiet:    quiet,
		maxDelay: maxDelay,
		requests: make(chan string, 64),
		ready:    make(chan struct{}),
	}, nil
}

// Ready is closed once Run is accepting requests.
func (d *Debouncer) Ready() <-chan struct{} {
	return d.ready
}

// Request records a change. It never blocks; when the buffer is full the burst
// is already pending and the request is dropped.
func (d *Debouncer) Request(reason string) {
	select {
	case d.requests <- reason:
	default:
	}
}

// Run delivers one emit(reason, count) per burst until ctx is done. reason is
// the last request of the burst.
func (d *Debouncer) Run(ctx context.Context, emit func(reason string, count int)) {
	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	defer quietTimer.Stop()
	defer maxTimer.Stop()

	var (
		quietC <-chan time.Time
		maxC   <-chan time.Time
		last   string
		count  int
	)

	flush := func() {
		if count > 0 {
			emit(last, count)
		}
		count = 0
		quietC, maxC = nil, nil
		quietTimer.Stop()
		maxTimer.Stop()
	}

	d.readyOnce.Do(func() { close(d.ready) })

	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-d.requests:
			last = reason
			count++
			resetTimer(quietTimer, d.quiet)
			quietC = quietTimer.C
			if count == 1 {
				resetTimer(maxTimer, d.maxDelay)
				maxC = maxTimer.C
			}
		case <-quietC:
			flush()
		case <-maxC:
			flush()
		}
	}
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}
