package metrics

import (
	"strconv"

	"github.com/vantagebit/dynago/transport"
)

// Metric names emitted by the request hook.
const (
	metricRequests = "client.requests"
	metricAttempts = "client.attempts"
	metricLatency  = "client.latency"
)

// RequestHook adapts a Provider to the transport engine's instrumentation
// hook, emitting a request counter tagged with the outcome, the attempt
// count and the end-to-end latency per terminal response.
type RequestHook struct {
	provider Provider
}

// NewRequestHook wraps provider for installation on an executor.
func NewRequestHook(provider Provider) *RequestHook {
	return &RequestHook{provider: provider}
}

// HandleRequestData emits metrics for one finished execution. The first
// emission error is returned; the engine logs it and continues.
func (h *RequestHook) HandleRequestData(req *transport.Request, resp *transport.Response, failed bool) error {
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	tags := []string{"outcome:" + outcome}
	if req != nil {
		tags = append(tags, "method:"+req.Method)
	}
	if resp != nil {
		tags = append(tags, "status:"+strconv.Itoa(resp.Status))
	}

	if err := h.provider.Count(metricRequests, 1, tags); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	if err := h.provider.Histogram(metricAttempts, float64(resp.Attempts), tags); err != nil {
		return err
	}
	return h.provider.Timing(metricLatency, resp.Elapsed, tags)
}
