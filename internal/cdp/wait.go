package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"
)

// pollInterval is the delay between state polls in WaitForState.
const pollInterval = 100 * time.Millisecond

// DefaultQuietPeriod is how long the event stream must stay silent for
// WaitForQuiescence to consider it settled.
const DefaultQuietPeriod = 500 * time.Millisecond

// StateQuery returns the current value of some remote state, typically
// by issuing a CDP call. It is re-invoked on every poll.
type StateQuery func(ctx context.Context) (string, error)

// WaitForState polls query until it returns a value in the accepted set.
// Each iteration is a full round trip, so transitions faster than the
// poll interval are invisible, but no transition can be missed: only
// current state is inspected. The wait is bounded by the context
// deadline (DefaultTimeout when the context has none) and fails with a
// *TimeoutError when it elapses.
func WaitForState(ctx context.Context, query StateQuery, accepted ...string) error {
	ctx, cancel := ensureDeadline(ctx)
	defer cancel()
	deadline, _ := ctx.Deadline()

	for {
		value, err := query(ctx)
		if err != nil {
			// A round trip cut short by this wait's own deadline is a
			// timeout of the wait, not a query failure.
			if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TimeoutError{Wait: "state poll", Deadline: deadline}
			}
			return err
		}
		if slices.Contains(accepted, value) {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TimeoutError{Wait: "state poll", Deadline: deadline}
			}
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ReadyStateQuery builds a StateQuery that reads document.readyState
// from the page.
func ReadyStateQuery(c *Client) StateQuery {
	return func(ctx context.Context) (string, error) {
		result, err := c.CallContext(ctx, "Runtime.evaluate", map[string]any{
			"expression":    "document.readyState",
			"returnByValue": true,
		})
		if err != nil {
			return "", err
		}
		var resp struct {
			Result struct {
				Value string `json:"value"`
			} `json:"result"`
		}
		if err := json.Unmarshal(result, &resp); err != nil {
			return "", err
		}
		return resp.Result.Value, nil
	}
}

// WaitForQuiescence waits for a burst of start/finish events to settle:
// it succeeds once no request is in flight and no matching event has
// arrived for quietPeriod. Every start or end event pushes the quiet
// window forward. The wait is bounded by the context deadline
// (DefaultTimeout when the context has none), which always wins over a
// still-open quiet window, and elapsing it returns a *TimeoutError.
//
// The subscription is registered before returning control to the
// caller's event stream, but events published before the call cannot
// be observed. The in-flight counter saturates at zero: an end event
// with no matched start (the burst began before we subscribed) must
// not push the counter negative.
func WaitForQuiescence(ctx context.Context, c *Client, startMethod string, endMethods []string, quietPeriod time.Duration) error {
	ctx, cancel := ensureDeadline(ctx)
	defer cancel()
	deadline, _ := ctx.Deadline()

	sub := c.Subscribe()
	defer sub.Close()

	ends := make(map[string]bool, len(endMethods))
	for _, m := range endMethods {
		ends[m] = true
	}

	inflight := 0
	quietUntil := time.Now().Add(quietPeriod)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		now := time.Now()
		if !now.Before(deadline) {
			return &TimeoutError{Wait: "quiescence", Deadline: deadline}
		}
		if inflight <= 0 && !now.Before(quietUntil) {
			return nil
		}

		// Wake at the earlier of the hard deadline and the quiet window;
		// the quiet window only matters while nothing is in flight.
		next := deadline
		if inflight <= 0 && quietUntil.Before(next) {
			next = quietUntil
		}
		timer.Reset(time.Until(next))

		select {
		case evt, ok := <-sub.Events():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			if !ok {
				return &TransportError{Err: errors.New("connection closed during wait")}
			}
			switch {
			case evt.Method == startMethod:
				inflight++
				quietUntil = time.Now().Add(quietPeriod)
			case ends[evt.Method]:
				if inflight > 0 {
					inflight--
				}
				quietUntil = time.Now().Add(quietPeriod)
			}
		case <-timer.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TimeoutError{Wait: "quiescence", Deadline: deadline}
			}
			return ctx.Err()
		}
	}
}

// WaitForNetworkIdle waits for in-flight network requests to finish and
// the network to stay quiet. Network.enable must already be in effect.
func WaitForNetworkIdle(ctx context.Context, c *Client, quietPeriod time.Duration) error {
	return WaitForQuiescence(ctx, c, "Network.requestWillBeSent",
		[]string{"Network.loadingFinished", "Network.loadingFailed"}, quietPeriod)
}

// ensureDeadline bounds the context with DefaultTimeout if the caller
// supplied none. No wait in this package is unbounded.
func ensureDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}
