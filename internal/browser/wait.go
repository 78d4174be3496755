package browser

import (
	"context"
	"time"
)

const defaultPollInterval = 250 * time.Millisecond

// ReadyFunc reports whether the loaded page has settled.
type ReadyFunc func(ctx context.Context) (bool, error)

// WaitStrategy decides when a navigated page is ready to be read.
type WaitStrategy interface {
	Wait(ctx context.Context, ready ReadyFunc) error
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the wall-clock SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FixedDelay waits a fixed settle period and ignores the readiness probe.
type FixedDelay struct {
	Delay time.Duration
	Sleep SleepFunc
}

func (f FixedDelay) Wait(ctx context.Context, _ ReadyFunc) error {
	sleep := f.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	return sleep(ctx, f.Delay)
}

// PollUntil polls ready until it reports true. Timeout caps the total time
// spent sleeping; reaching the cap is not an error and the page is read as
// is. A zero Timeout polls until ctx is done. Probe errors count as "not
// ready yet" since documents are routinely replaced mid-navigation.
type PollUntil struct {
	Interval time.Duration
	Timeout  time.Duration
	Sleep    SleepFunc
}

func (p PollUntil) Wait(ctx context.Context, ready ReadyFunc) error {
	if ready == nil {
		return nil
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	interval := p.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	var waited time.Duration
	for {
		ok, err := ready(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err == nil && ok {
			return nil
		}
		if p.Timeout > 0 && waited >= p.Timeout {
			return nil
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
		waited += interval
	}
}
