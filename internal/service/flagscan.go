package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TrustScanConfig holds configuration for the trust scan scheduler.
type TrustScanConfig struct {
	// ScanInterval is how often every account's standing is reviewed.
	// Default: 1 hour
	ScanInterval time.Duration
}

// DefaultTrustScanConfig returns default trust scan configuration.
func DefaultTrustScanConfig() TrustScanConfig {
	return TrustScanConfig{ScanInterval: 1 * time.Hour}
}

// TrustScanScheduler periodically reviews every account against its
// thresholds. Reviews also run inline whenever a transaction finalizes; the
// sweep catches accounts whose thresholds an admin lowered after the fact.
type TrustScanScheduler struct {
	directory *TradingUserDirectory
	config    TrustScanConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewTrustScanScheduler creates a new trust scan scheduler.
func NewTrustScanScheduler(directory *TradingUserDirectory, config TrustScanConfig) *TrustScanScheduler {
	if config.ScanInterval == 0 {
		config.ScanInterval = 1 * time.Hour
	}
	return &TrustScanScheduler{
		directory: directory,
		config:    config,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the scan scheduler.
func (s *TrustScanScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.ScanInterval)
	s.mu.Unlock()

	log.Printf("[TrustScanScheduler] Started - Interval: %v", s.config.ScanInterval)
	go s.run()
}

// run is the main scan loop.
func (s *TrustScanScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runScan()
		case <-s.stopCh:
			log.Printf("[TrustScanScheduler] Stopped")
			return
		}
	}
}

// runScan reviews every account once.
func (s *TrustScanScheduler) runScan() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	flagged := s.RunNow(ctx)
	if flagged > 0 {
		log.Printf("[TrustScanScheduler] Flagged %d account(s)", flagged)
	}
}

// RunNow reviews every account immediately and returns how many ended up
// flagged.
func (s *TrustScanScheduler) RunNow(ctx context.Context) int {
	d := s.directory

	d.mu.RLock()
	ids := make([]uuid.UUID, 0, len(d.users))
	for id := range d.users {
		ids = append(ids, id)
	}
	d.mu.RUnlock()

	flagged := 0
	for _, id := range ids {
		if d.ReviewTrustStanding(ctx, id) {
			flagged++
		}
	}
	return flagged
}

// Stop stops the scan scheduler.
func (s *TrustScanScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
