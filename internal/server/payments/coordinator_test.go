package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	requestID  string
	err        error
	onInitiate func(requestID string)
}

func (f *fakeProvider) Initiate(ctx context.Context, amount int64, payerHandle, reference string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.onInitiate != nil {
		f.onInitiate(f.requestID)
	}
	return f.requestID, nil
}

func testAttempt() *models.PurchaseAttempt {
	return &models.PurchaseAttempt{ID: "p1", Amount: 2330, PayerHandle: "jane", Status: models.PurchaseStatusPending}
}

// waitPending blocks until the coordinator has a registered waiter.
func waitPending(t *testing.T, c *Coordinator) {
	t.Helper()
	assert.Eventually(t, func() bool { return c.Pending() == 1 }, 2*time.Second, time.Millisecond)
}

func TestCoordinator_Confirmed(t *testing.T) {
	c := NewCoordinator(&fakeProvider{requestID: "r1"}, time.Second, logging.NopLogger{})

	go func() {
		waitPending(t, c)
		assert.True(t, c.Signal("r1", true))
	}()

	res, err := c.RequestPayment(context.Background(), make(chan struct{}), testAttempt())
	require.NoError(t, err)
	assert.Equal(t, Confirmed, res.Outcome)
	assert.Equal(t, "r1", res.RequestID)
	assert.Equal(t, 0, c.Pending())
}

func TestCoordinator_Failed(t *testing.T) {
	c := NewCoordinator(&fakeProvider{requestID: "r1"}, time.Second, logging.NopLogger{})

	go func() {
		waitPending(t, c)
		c.Signal("r1", false)
	}()

	res, err := c.RequestPayment(context.Background(), make(chan struct{}), testAttempt())
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, models.PurchaseStatusFailed, res.Outcome.Status())
}

func TestCoordinator_TimeoutThenLateSignalIgnored(t *testing.T) {
	c := NewCoordinator(&fakeProvider{requestID: "r1"}, 20*time.Millisecond, logging.NopLogger{})

	res, err := c.RequestPayment(context.Background(), make(chan struct{}), testAttempt())
	require.NoError(t, err)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, models.PurchaseStatusTimedOut, res.Outcome.Status())

	assert.False(t, c.Signal("r1", true))
}

func TestCoordinator_SessionEndCancels(t *testing.T) {
	c := NewCoordinator(&fakeProvider{requestID: "r1"}, time.Minute, logging.NopLogger{})
	done := make(chan struct{})

	go func() {
		waitPending(t, c)
		close(done)
	}()

	res, err := c.RequestPayment(context.Background(), done, testAttempt())
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Outcome)
	assert.Equal(t, models.PurchaseStatusTimedOut, res.Outcome.Status())

	assert.False(t, c.Signal("r1", true))
}

func TestCoordinator_ContextCancel(t *testing.T) {
	c := NewCoordinator(&fakeProvider{requestID: "r1"}, time.Minute, logging.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		waitPending(t, c)
		cancel()
	}()

	res, err := c.RequestPayment(ctx, make(chan struct{}), testAttempt())
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Outcome)
}

func TestCoordinator_EndedSessionSkipsProvider(t *testing.T) {
	p := &fakeProvider{requestID: "r1", onInitiate: func(string) { t.Error("provider must not be called") }}
	c := NewCoordinator(p, time.Minute, logging.NopLogger{})
	done := make(chan struct{})
	close(done)

	res, err := c.RequestPayment(context.Background(), done, testAttempt())
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Outcome)
}

func TestCoordinator_SignalBeforeRegistration(t *testing.T) {
	var c *Coordinator
	p := &fakeProvider{requestID: "r1"}
	p.onInitiate = func(id string) { c.Signal(id, true) }
	c = NewCoordinator(p, time.Minute, logging.NopLogger{})

	res, err := c.RequestPayment(context.Background(), make(chan struct{}), testAttempt())
	require.NoError(t, err)
	assert.Equal(t, Confirmed, res.Outcome)
}

func TestCoordinator_UnknownSignalNotHeld(t *testing.T) {
	c := NewCoordinator(&fakeProvider{requestID: "r1"}, 20*time.Millisecond, logging.NopLogger{})

	// nothing is being initiated, so r1 cannot be a real early callback
	assert.False(t, c.Signal("r1", true))
	assert.Empty(t, c.early)

	res, err := c.RequestPayment(context.Background(), make(chan struct{}), testAttempt())
	require.NoError(t, err)
	assert.Equal(t, TimedOut, res.Outcome)
}

func TestCoordinator_HeldSignalsBounded(t *testing.T) {
	var c *Coordinator
	p := &fakeProvider{requestID: "r1"}
	p.onInitiate = func(id string) {
		for i := 0; i < maxParked+10; i++ {
			c.Signal(fmt.Sprintf("junk-%d", i), true)
		}
		c.Signal(id, true)
	}
	c = NewCoordinator(p, 20*time.Millisecond, logging.NopLogger{})

	res, err := c.RequestPayment(context.Background(), make(chan struct{}), testAttempt())
	require.NoError(t, err)
	// the real signal arrived after the cap was reached
	assert.Equal(t, TimedOut, res.Outcome)
	assert.Len(t, c.early, maxParked)
	assert.Zero(t, c.initiating)
}

// A confirmation that claimed the wait is kept even when the session ends
// right after.
func TestCoordinator_ClaimedConfirmationBeatsSessionEnd(t *testing.T) {
	var c *Coordinator
	done := make(chan struct{})
	p := &fakeProvider{requestID: "r1"}
	p.onInitiate = func(id string) {
		c.Signal(id, true)
		close(done)
	}
	c = NewCoordinator(p, time.Minute, logging.NopLogger{})

	res, err := c.RequestPayment(context.Background(), done, testAttempt())
	require.NoError(t, err)
	assert.Equal(t, Confirmed, res.Outcome)
}

func TestCoordinator_InitiateError(t *testing.T) {
	c := NewCoordinator(&fakeProvider{err: errors.New("rail down")}, time.Minute, logging.NopLogger{})

	res, err := c.RequestPayment(context.Background(), make(chan struct{}), testAttempt())
	assert.ErrorIs(t, err, ErrInitiate)
	assert.Equal(t, Failed, res.Outcome)
	assert.Zero(t, c.initiating)
}

func TestWaiter_ClaimOnce(t *testing.T) {
	w := newWaiter()
	assert.True(t, w.claim(Confirmed))
	assert.False(t, w.claim(TimedOut))
	assert.Equal(t, Confirmed, <-w.ch)
}

func TestSimulatedProvider(t *testing.T) {
	p := NewSimulatedProvider(5*time.Millisecond, logging.NopLogger{})
	c := NewCoordinator(p, time.Second, logging.NopLogger{})
	p.Bind(c)

	res, err := c.RequestPayment(context.Background(), make(chan struct{}), testAttempt())
	require.NoError(t, err)
	assert.Equal(t, Confirmed, res.Outcome)

	declined := testAttempt()
	declined.PayerHandle = "fail-card"
	res, err = c.RequestPayment(context.Background(), make(chan struct{}), declined)
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
}
