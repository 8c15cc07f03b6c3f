package payments

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/google/uuid"
)

// DeclinePrefix marks payer handles the simulated rail always declines.
const DeclinePrefix = "fail"

// SimulatedProvider is a development rail that answers every payment after
// a fixed delay.
type SimulatedProvider struct {
	delay  time.Duration
	logger logging.Logger

	mu     sync.RWMutex
	target Signaler
}

func NewSimulatedProvider(delay time.Duration, l logging.Logger) *SimulatedProvider {
	return &SimulatedProvider{delay: delay, logger: l.With("module", "simulated_provider")}
}

// Bind sets where outcomes are delivered.
func (p *SimulatedProvider) Bind(s Signaler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = s
}

func (p *SimulatedProvider) Initiate(ctx context.Context, amount int64, payerHandle, reference string) (string, error) {
	requestID := uuid.NewString()
	confirmed := !strings.HasPrefix(strings.ToLower(payerHandle), DeclinePrefix)

	p.logger.Debug(ctx, "simulated payment initiated",
		"request_id", requestID, "reference", reference, "amount", amount)

	time.AfterFunc(p.delay, func() {
		p.mu.RLock()
		target := p.target
		p.mu.RUnlock()
		if target != nil {
			target.Signal(requestID, confirmed)
		}
	})
	return requestID, nil
}
