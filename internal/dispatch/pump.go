package dispatch

import (
	"context"
	"errors"
	"time"

	"warimas-pos/internal/logger"

	"go.uber.org/zap"
	"gopkg.in/tomb.v2"
)

var ErrPumpRunning = errors.New("dispatch pump already running")

// Pump drains the dispatch queue on a fixed interval until stopped.
type Pump struct {
	svc      *Service
	interval time.Duration
	t        *tomb.Tomb
}

func NewPump(svc *Service, interval time.Duration) *Pump {
	return &Pump{svc: svc, interval: interval}
}

// Start launches the loop. The loop stops when ctx is done or Stop is called.
func (p *Pump) Start(ctx context.Context) error {
	if p.t != nil && p.t.Alive() {
		return ErrPumpRunning
	}

	log := logger.FromCtx(ctx)

	t, tctx := tomb.WithContext(ctx)
	p.t = t
	t.Go(func() error {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				passCtx := logger.WithRun(tctx, "dispatch")
				passLog := logger.FromCtx(passCtx)
				stats, err := p.svc.ProcessQueue(passCtx)
				if err != nil {
					passLog.Warn("dispatch queue pass failed", zap.Error(err))
					continue
				}
				if stats.Processed+stats.Failed > 0 {
					passLog.Info("dispatch queue pass",
						zap.Int("processed", stats.Processed),
						zap.Int("failed", stats.Failed),
						zap.Int("skipped", stats.Skipped),
					)
				}
			case <-t.Dying():
				return nil
			}
		}
	})
	log.Info("dispatch pump started", zap.Duration("interval", p.interval))
	return nil
}

// Stop kills the loop and waits for it to exit.
func (p *Pump) Stop() error {
	if p.t == nil {
		return nil
	}
	p.t.Kill(nil)
	err := p.t.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
