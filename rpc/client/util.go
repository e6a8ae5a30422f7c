package client

import (
	"fmt"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/frame"
	"github.com/ValentinKolb/twinkle/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var (
	Logger = logger.GetLogger("rpc")

	callAttempts  = metrics.NewCounter(`twinkle_call_attempts_total`)
	callTimeouts  = metrics.NewCounter(`twinkle_call_timeouts_total`)
	callFailures  = metrics.NewCounter(`twinkle_call_command_failures_total`)
	callSucceeded = metrics.NewCounter(`twinkle_calls_succeeded_total`)
)

// sleep is replaced in tests
var sleep = time.Sleep

// callDuration returns the latency histogram of one opcode
func callDuration(op common.Opcode) *metrics.Histogram {
	return metrics.GetOrCreateHistogram(fmt.Sprintf(`twinkle_call_duration_seconds{op=%q}`, op.String()))
}

// invokeRequest is the retry loop shared by all calls.
// Every outer attempt re-registers a waiter under the packet id and resends the frame,
// then polls the waiter with exponential backoff. A response to any earlier attempt
// still completes the call since all attempts share the id.
func invokeRequest(t transport.IClientTransport, p frame.Packet, policy common.RetryPolicy) ([]byte, error) {
	// last is the waiter of the previous attempt. The listener may have taken it from
	// the table and delivered to it right after its final poll, so it stays polled.
	var last *transport.Waiter

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		w, prev, err := t.Dispatch(p)
		if err != nil {
			return nil, err
		}
		callAttempts.Inc()

		// prev is the same waiter as last if it was still registered
		if prev != nil {
			last = prev
		}
		if o, ok := poll(last); ok {
			return outcome(o)
		}

		for i := 0; i < policy.Polls; i++ {
			sleep(policy.Delay(i))
			if o, ok := w.Poll(); ok {
				return outcome(o)
			}
			if o, ok := poll(last); ok {
				return outcome(o)
			}
		}
		last = w

		Logger.Debugf("Request %s attempt %d/%d got no response", p.ID, attempt+1, policy.MaxAttempts)
	}

	callTimeouts.Inc()
	Logger.Warningf("Request %s timed out after %d attempts", p.ID, policy.MaxAttempts)
	return nil, fmt.Errorf("no response for request %s after %d attempts: %w", p.ID, policy.MaxAttempts, common.ErrRequestTimeout)
}

// poll checks w for an outcome, a nil waiter never has one
func poll(w *transport.Waiter) (common.Outcome, bool) {
	if w == nil {
		return common.Outcome{}, false
	}
	return w.Poll()
}

// outcome converts a delivered outcome into the return values of a call
func outcome(o common.Outcome) ([]byte, error) {
	if o.Err != nil {
		callFailures.Inc()
		return nil, o.Err
	}
	callSucceeded.Inc()
	return o.Value, nil
}
