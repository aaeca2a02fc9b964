package bootstrap

import (
	"context"
	"sync"
	"time"

	"advisor/internal/adapters/kafka"
	redisclient "advisor/internal/adapters/redis"
	"advisor/internal/api"
	"advisor/internal/tracking"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager. In-flight crew runs get
// shutdownTimeout to finish before the HTTP server is torn down.
func NewLifecycle(shutdownTimeout time.Duration) *Lifecycle {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &Lifecycle{shutdownTimeout: shutdownTimeout}
}

// Shutdown performs coordinated cleanup in order:
// 1. No new requests accepted, in-flight runs drained
// 2. Background goroutines finish
// 3. Pending run events published, then the Kafka producer closed
// 4. Errors and logs flushed
// 5. Cache connection closed last
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	httpServer *api.Server,
	runTracker *tracking.Tracker,
	kafkaProducer *kafka.Producer,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout+10*time.Second)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop HTTP Server
	// ========================================
	log.Info("[1/5] Stopping HTTP server...")
	if httpServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, l.shutdownTimeout)
		if err := httpServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	// ========================================
	// Step 2: Wait for background goroutines
	// ========================================
	log.Info("[2/5] Waiting for background goroutines...")
	l.waitForGoroutines(wg, 5*time.Second, log)

	// ========================================
	// Step 3: Close Kafka Producer
	// ========================================
	log.Info("[3/5] Closing Kafka producer...")
	if runTracker.Enabled() {
		flushCtx, flushCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := runTracker.Flush(flushCtx); err != nil {
			log.Warnw("Some run events were not published", "error", err)
		}
		flushCancel()
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	// ========================================
	// Step 4: Flush Error Tracker and logs
	// ========================================
	log.Info("[4/5] Flushing error tracker...")
	l.flushErrorTracker(shutdownCtx, errorTracker, log)
	_ = logger.Sync()

	// ========================================
	// Step 5: Close cache
	// ========================================
	log.Info("[5/5] Closing cache connection...")
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Errorw("Redis close failed", "error", err)
		} else {
			log.Info("✓ Redis connection closed")
		}
	}

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	if wg == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}
