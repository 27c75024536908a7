package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
)

// receiptPrefix is where receipt uploads are stored
const receiptPrefix = "reports"

// SweeperConfig holds configuration for the receipt sweeper
type SweeperConfig struct {
	Interval time.Duration
	// Grace is how long an unattached upload is kept, so a submitter has time to reference
	// it from an item
	Grace time.Duration
}

// DefaultSweeperConfig returns default configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval: time.Hour,
		Grace:    24 * time.Hour,
	}
}

// SweepResult summarises one sweep
type SweepResult struct {
	Scanned int
	Removed int
	Failed  int
}

// ReceiptSweeper removes uploaded receipts that no expense item references once they are
// older than the grace period
type ReceiptSweeper struct {
	config  SweeperConfig
	catalog port.ReceiptCatalog
	index   port.ReceiptIndex
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReceiptSweeper creates a new receipt sweeper
func NewReceiptSweeper(config SweeperConfig, catalog port.ReceiptCatalog, index port.ReceiptIndex, logger *zap.Logger) *ReceiptSweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	return &ReceiptSweeper{
		config:  config,
		catalog: catalog,
		index:   index,
		logger:  logger,
		now:     time.Now,
	}
}

// Name returns the worker name for identification
func (w *ReceiptSweeper) Name() string {
	return "ReceiptSweeper"
}

// Start begins the sweep loop
func (w *ReceiptSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("receipt sweeper already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("ReceiptSweeper started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("grace", w.config.Grace))

	go w.loop(ctx, w.done)
	return nil
}

// Stop terminates the loop and waits for an in-progress sweep
func (w *ReceiptSweeper) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("ReceiptSweeper stopped")
	return nil
}

func (w *ReceiptSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Receipt sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass. Refs are loaded after the listing so a ref written in between is kept.
func (w *ReceiptSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	files, err := w.catalog.List(ctx, receiptPrefix)
	if err != nil {
		return result, err
	}
	refs, err := w.index.ReceiptRefs(ctx)
	if err != nil {
		return result, err
	}

	cutoff := w.now().Add(-w.config.Grace)
	for _, f := range files {
		result.Scanned++
		if _, ok := refs[f.Path]; ok || f.ModTime.After(cutoff) {
			continue
		}
		if err := w.catalog.Delete(ctx, f.Path); err != nil {
			w.logger.Error("Failed to remove orphaned receipt",
				zap.String("ref", f.Path),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.Removed++
	}

	if result.Removed > 0 || result.Failed > 0 {
		w.logger.Info("Receipt sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("removed", result.Removed),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}
