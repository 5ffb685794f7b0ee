package session

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seuros/scout/internal/logging"
)

// Janitor periodically sweeps idle sessions out of a registry.
type Janitor struct {
	registry *Registry
	interval time.Duration
	onExpire func(uuid.UUID)
	stopChan chan struct{}
	done     chan struct{}
}

// NewJanitor creates a janitor. onExpire, when non-nil, runs for every
// removed session.
func NewJanitor(registry *Registry, interval time.Duration, onExpire func(uuid.UUID)) *Janitor {
	return &Janitor{
		registry: registry,
		interval: interval,
		onExpire: onExpire,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins sweeping in the background.
func (j *Janitor) Start() {
	logging.L().Info("starting session janitor", zap.Duration("interval", j.interval))
	go j.run()
}

// Stop halts the janitor and waits for the loop to exit.
func (j *Janitor) Stop() {
	close(j.stopChan)
	<-j.done
}

func (j *Janitor) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stopChan:
			return
		}
	}
}

func (j *Janitor) sweep() int {
	expired := j.registry.Sweep()
	for _, id := range expired {
		if j.onExpire != nil {
			j.onExpire(id)
		}
	}
	if len(expired) > 0 {
		logging.L().Info("expired idle sessions",
			zap.Int("expired_count", len(expired)),
			zap.Int("remaining", j.registry.Len()))
	}
	return len(expired)
}
