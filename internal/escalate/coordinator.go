package escalate

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Status advances monotonically: idle -> calling -> succeeded|failed.
// failed may re-enter calling only through an explicit user retry.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusCalling   Status = "calling"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var ErrRetryNotAllowed = errors.New("escalate: retry only allowed after a failed call")

// Outcome is the coordinator's current view for the presentation layer.
type Outcome struct {
	Status Status `json:"status"`
	CallID string `json:"call_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Coordinator guarantees at most one automatic dial per negotiation. It is
// created alongside the negotiation and observes entries into the escalated
// state.
type Coordinator struct {
	mu      sync.Mutex
	status  Status
	callID  string
	lastErr string

	dialer   Dialer
	logger   *zap.Logger
	onChange func(Outcome)
}

// NewCoordinator builds an idle coordinator. onChange, if non-nil, is called
// after every status change with the new outcome (used for event logging).
func NewCoordinator(d Dialer, logger *zap.Logger, onChange func(Outcome)) *Coordinator {
	return &Coordinator{
		status:   StatusIdle,
		dialer:   d,
		logger:   logger.Named("escalate"),
		onChange: onChange,
	}
}

func (c *Coordinator) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Outcome{Status: c.status, CallID: c.callID, Error: c.lastErr}
}

// TriggerOnce dials the human agent on the first entry into escalation.
// Subsequent calls are no-ops; the monotonic status is the guard.
func (c *Coordinator) TriggerOnce(ctx context.Context, req DialRequest) {
	c.mu.Lock()
	if c.status != StatusIdle {
		c.mu.Unlock()
		return
	}
	c.status = StatusCalling
	c.mu.Unlock()
	c.notify()

	c.dial(ctx, req)
}

// Retry re-dials after a failed call. It is the user-visible retry
// affordance and the only path out of the failed status.
func (c *Coordinator) Retry(ctx context.Context, req DialRequest) error {
	c.mu.Lock()
	if c.status != StatusFailed {
		c.mu.Unlock()
		return ErrRetryNotAllowed
	}
	c.lastErr = ""
	c.status = StatusCalling
	c.mu.Unlock()
	c.notify()

	c.dial(ctx, req)
	return nil
}

func (c *Coordinator) dial(ctx context.Context, req DialRequest) {
	callID, err := c.dialer.Dial(ctx, req)

	c.mu.Lock()
	if err != nil {
		c.lastErr = err.Error()
		c.status = StatusFailed
	} else {
		c.callID = callID
		c.status = StatusSucceeded
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		c.logger.Warn("escalation dial failed", zap.String("client", req.ClientName), zap.Error(err))
		metricDials.WithLabelValues("failed").Inc()
		return
	}
	c.logger.Info("escalation call placed", zap.String("client", req.ClientName), zap.String("call_id", callID))
	metricDials.WithLabelValues("succeeded").Inc()
}

// notify runs the onChange callback outside the lock to avoid re-entrancy
// deadlocks when the callback reads the coordinator back.
func (c *Coordinator) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.Outcome())
}
