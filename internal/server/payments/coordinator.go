// Package payments waits for asynchronous payment outcomes.
//
// A purchase attempt is handed to a Provider, then the Coordinator waits for
// whichever comes first: the provider's signal, the payment timeout, the end
// of the session or the caller going away. The first of those to claim the
// wait decides the outcome; anything arriving later is ignored.
package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
)

const (
	DefaultTimeout = 5 * time.Second
	// signals for unknown or finished requests are remembered this long
	retention = time.Minute
	maxParked = 1024
)

// Outcome is how a payment wait ended.
type Outcome string

const (
	Confirmed Outcome = "confirmed"
	Failed    Outcome = "failed"
	// TimedOut means the provider stayed silent past the payment timeout.
	TimedOut Outcome = "timed_out"
	// Cancelled means the wait was abandoned locally: session ended or the
	// caller went away.
	Cancelled Outcome = "cancelled"
)

// Status maps an outcome to the attempt status it resolves to.
func (o Outcome) Status() models.PurchaseStatus {
	switch o {
	case Confirmed:
		return models.PurchaseStatusConfirmed
	case Failed:
		return models.PurchaseStatusFailed
	default:
		return models.PurchaseStatusTimedOut
	}
}

// Provider starts a payment on an external rail. The returned request id is
// later echoed back through Coordinator.Signal.
type Provider interface {
	Initiate(ctx context.Context, amount int64, payerHandle, reference string) (string, error)
}

// Signaler receives provider outcomes.
type Signaler interface {
	Signal(requestID string, confirmed bool) bool
}

var ErrInitiate = errors.New("payment initiation failed")

type waiter struct {
	mu      sync.Mutex
	claimed bool
	ch      chan Outcome
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan Outcome, 1)}
}

// claim records o as the outcome if nothing claimed the wait before.
func (w *waiter) claim(o Outcome) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.claimed {
		return false
	}
	w.claimed = true
	w.ch <- o
	return true
}

type parked struct {
	confirmed bool
	at        time.Time
}

type Coordinator struct {
	provider Provider
	timeout  time.Duration
	logger   logging.Logger

	mu         sync.Mutex
	waiters    map[string]*waiter
	early      map[string]parked
	finished   map[string]time.Time
	initiating int
}

func NewCoordinator(p Provider, timeout time.Duration, l logging.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		provider: p,
		timeout:  timeout,
		logger:   l.With("module", "payments"),
		waiters:  make(map[string]*waiter),
		early:    make(map[string]parked),
		finished: make(map[string]time.Time),
	}
}

// Result is the outcome of RequestPayment together with the provider's
// request id.
type Result struct {
	Outcome   Outcome
	RequestID string
}

// RequestPayment initiates attempt with the provider and blocks until it is
// decided. done is the session's Done channel.
//
// A provider error is returned as a Failed outcome wrapped in ErrInitiate.
func (c *Coordinator) RequestPayment(ctx context.Context, done <-chan struct{}, attempt *models.PurchaseAttempt) (Result, error) {
	select {
	case <-done:
		return Result{Outcome: Cancelled}, nil
	case <-ctx.Done():
		return Result{Outcome: Cancelled}, nil
	default:
	}

	c.mu.Lock()
	c.initiating++
	c.mu.Unlock()

	requestID, err := c.provider.Initiate(ctx, attempt.Amount, attempt.PayerHandle, attempt.ID)
	if err != nil {
		c.mu.Lock()
		c.initiating--
		c.mu.Unlock()
		if ctx.Err() != nil {
			return Result{Outcome: Cancelled}, nil
		}
		return Result{Outcome: Failed}, fmt.Errorf("%w: %w", ErrInitiate, err)
	}

	w := c.register(requestID)
	defer c.unregister(requestID)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var o Outcome
	select {
	case o = <-w.ch:
	case <-timer.C:
		o = c.decide(w, TimedOut)
	case <-done:
		o = c.decide(w, Cancelled)
	case <-ctx.Done():
		o = c.decide(w, Cancelled)
	}

	c.logger.Info(ctx, "payment decided",
		"attempt_id", attempt.ID, "request_id", requestID, "outcome", string(o))
	return Result{Outcome: o, RequestID: requestID}, nil
}

// decide claims the wait with local, or reads the outcome that beat it.
func (c *Coordinator) decide(w *waiter, local Outcome) Outcome {
	w.claim(local)
	return <-w.ch
}

// Signal delivers a provider outcome. It reports whether the signal decided
// a wait. Signals for finished waits are dropped. A signal for a request not
// yet registered is held until registration, but only while some Initiate
// call is in flight and fewer than maxParked signals are held.
func (c *Coordinator) Signal(requestID string, confirmed bool) bool {
	o := Failed
	if confirmed {
		o = Confirmed
	}

	c.mu.Lock()
	now := time.Now()
	c.purgeLocked(now)

	w, ok := c.waiters[requestID]
	if !ok {
		if _, done := c.finished[requestID]; done {
			c.mu.Unlock()
			c.logger.Warn(context.Background(), "late payment signal ignored",
				"request_id", requestID, "outcome", string(o))
			return false
		}
		if c.initiating == 0 || len(c.early) >= maxParked {
			c.mu.Unlock()
			c.logger.Warn(context.Background(), "unknown payment signal dropped",
				"request_id", requestID, "outcome", string(o))
			return false
		}
		c.early[requestID] = parked{confirmed: confirmed, at: now}
		c.mu.Unlock()
		c.logger.Debug(context.Background(), "payment signal parked", "request_id", requestID)
		return false
	}
	c.mu.Unlock()

	if !w.claim(o) {
		c.logger.Warn(context.Background(), "payment signal lost race",
			"request_id", requestID, "outcome", string(o))
		return false
	}
	return true
}

// Pending counts waits in progress.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *Coordinator) register(requestID string) *waiter {
	w := newWaiter()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.initiating--
	c.waiters[requestID] = w
	if p, ok := c.early[requestID]; ok {
		delete(c.early, requestID)
		o := Failed
		if p.confirmed {
			o = Confirmed
		}
		w.claim(o)
	}
	return w
}

func (c *Coordinator) unregister(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiters, requestID)
	c.finished[requestID] = time.Now()
}

func (c *Coordinator) purgeLocked(now time.Time) {
	for id, at := range c.finished {
		if now.Sub(at) > retention {
			delete(c.finished, id)
		}
	}
	for id, p := range c.early {
		if now.Sub(p.at) > retention {
			delete(c.early, id)
		}
	}
}
