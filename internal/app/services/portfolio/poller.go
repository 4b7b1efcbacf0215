package portfolio

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	domain "github.com/openquant/tradehook/internal/app/domain/portfolio"
	"github.com/openquant/tradehook/internal/app/storage"
	"github.com/openquant/tradehook/pkg/logger"
)

// SnapshotPoller records the USDT balance on a cron schedule so balance
// history survives restarts. It is registered with the system manager and
// runs for the lifetime of the process.
type SnapshotPoller struct {
	service   *Service
	snapshots storage.SnapshotStore
	schedule  cron.Schedule
	log       *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSnapshotPoller parses spec as a cron expression or descriptor such as
// "@every 15m" and builds the poller.
func NewSnapshotPoller(service *Service, snapshots storage.SnapshotStore, spec string, log *logger.Logger) (*SnapshotPoller, error) {
	if log == nil {
		log = logger.NewDefault("snapshot-poller")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}
	return &SnapshotPoller{
		service:   service,
		snapshots: snapshots,
		schedule:  schedule,
		log:       log,
	}, nil
}

func (p *SnapshotPoller) Name() string { return "portfolio.snapshot-poller" }

// Start launches the polling loop. Start on a running poller is a no-op.
func (p *SnapshotPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go p.loop(loopCtx)
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (p *SnapshotPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer p.wg.Done()

	for {
		next := p.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := p.collect(ctx); err != nil {
			p.log.WithError(err).Warn("balance snapshot failed")
		}
	}
}

// Collect records one snapshot immediately. The loop calls it on schedule;
// tests call it directly.
func (p *SnapshotPoller) Collect(ctx context.Context) error {
	return p.collect(ctx)
}

func (p *SnapshotPoller) collect(ctx context.Context) error {
	balance, err := p.service.USDTBalance(ctx)
	if err != nil {
		return err
	}

	total, err := strconv.ParseFloat(balance.Balance, 64)
	if err != nil {
		return err
	}
	available, err := strconv.ParseFloat(balance.AvailableBalance, 64)
	if err != nil {
		return err
	}

	snap, err := p.snapshots.CreateSnapshot(ctx, domain.Snapshot{
		Asset:            balance.Asset,
		Balance:          total,
		AvailableBalance: available,
	})
	if err != nil {
		return err
	}

	p.log.WithFields(map[string]interface{}{
		"snapshot_id": snap.ID,
		"balance":     snap.Balance,
	}).Debug("balance snapshot recorded")
	return nil
}

// History returns recorded snapshots newest-first, capped at limit when
// positive.
func (p *SnapshotPoller) History(ctx context.Context, asset string, limit int) ([]domain.Snapshot, error) {
	return p.snapshots.ListSnapshots(ctx, asset, limit)
}
