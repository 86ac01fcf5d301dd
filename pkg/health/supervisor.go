// Package health runs the background integrity loop that periodically
// re-validates the chain and recovers from drift against the durable
// store (spec §4.7 Integrity loop).
package health

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/agrichain/ledgercore/pkg/chain"
)

// State is the current run state of a Supervisor.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Result is the outcome of one integrity check.
type Result struct {
	Valid      bool
	Recovered  bool
	BlockCount int
	Issues     []string
	CheckedAt  time.Time
}

// Supervisor periodically validates the chain engine and, on
// detecting drift, reloads it from the durable store and re-checks.
type Supervisor struct {
	mu sync.RWMutex

	engine    *chain.Engine
	persister chain.Persister
	interval  time.Duration
	logger    *log.Logger

	state  State
	stopCh chan struct{}
	doneCh chan struct{}

	lastResult Result
}

// Config configures a Supervisor.
type Config struct {
	Interval time.Duration
	Logger   *log.Logger
}

// DefaultConfig returns the baseline integrity-loop cadence (§4.7:
// "every 5 minutes").
func DefaultConfig() *Config {
	return &Config{
		Interval: 5 * time.Minute,
		Logger:   log.New(log.Writer(), "[health] ", log.LstdFlags),
	}
}

// NewSupervisor creates a supervisor for engine. persister is the same
// durable store the engine writes through; the supervisor reads it
// independently of the engine's in-memory state so it can detect
// drift between the two (§4.7 Integrity loop steps 2-3). persister
// may be nil for an in-memory-only engine, in which case CheckNow only
// runs step 1.
func NewSupervisor(engine *chain.Engine, persister chain.Persister, cfg *Config) (*Supervisor, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[health] ", log.LstdFlags)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}

	return &Supervisor{
		engine:    engine,
		persister: persister,
		interval:  cfg.Interval,
		logger:    cfg.Logger,
		state:     StateStopped,
	}, nil
}

// Start begins the background integrity loop.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return nil
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.state = StateRunning

	go s.run(ctx)

	s.logger.Printf("integrity supervisor started (interval=%s)", s.interval)
	return nil
}

// Stop halts the background loop and waits for it to exit.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.state = StateStopped
	s.mu.Unlock()

	<-s.doneCh
	s.logger.Println("integrity supervisor stopped")
	return nil
}

// State returns the supervisor's current run state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastResult returns the most recent check's outcome.
func (s *Supervisor) LastResult() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.CheckNow(ctx)
		}
	}
}

// CheckNow runs one integrity check immediately (§4.7 Integrity loop):
// step 1 validates the in-memory chain; steps 2-3, when a durable
// store is configured, compare its block count and tip hash against
// what the engine currently holds in memory. On any step failing, the
// engine is reloaded from the durable store and the result reflects
// the post-recovery state.
func (s *Supervisor) CheckNow(ctx context.Context) Result {
	h := s.engine.Health()
	result := Result{
		Valid:      h.Valid,
		BlockCount: h.BlockCount,
		Issues:     append([]string{}, h.Issues...),
		CheckedAt:  h.CheckedAt,
	}

	if result.Valid && s.persister != nil {
		if driftIssues := s.compareToDurableStore(ctx, h); len(driftIssues) > 0 {
			result.Valid = false
			result.Issues = append(result.Issues, driftIssues...)
		}
	}

	if !result.Valid {
		s.logger.Printf("integrity check failed: %v — reloading from durable store", result.Issues)
		if err := s.engine.Reload(ctx); err != nil {
			result.Issues = append(result.Issues, "reload failed: "+err.Error())
			s.record(result)
			return result
		}

		recovered := s.engine.Health()
		result.Valid = recovered.Valid
		result.BlockCount = recovered.BlockCount
		result.Issues = recovered.Issues
		result.Recovered = recovered.Valid
		result.CheckedAt = recovered.CheckedAt

		if recovered.Valid {
			s.logger.Println("recovered after reload")
		} else {
			s.logger.Printf("still invalid after reload: %v", recovered.Issues)
		}
	}

	s.record(result)
	return result
}

// compareToDurableStore implements integrity-loop steps 2-3: the
// in-memory block count must match what the durable store reports,
// and the in-memory chain's tip hash must match the hash of the
// durable store's last block. A mismatch here means the durable store
// moved (or was tampered with) independently of the engine that is
// supposed to be the only writer.
func (s *Supervisor) compareToDurableStore(ctx context.Context, h chain.Health) []string {
	durableCount, err := s.persister.CountBlocks(ctx)
	if err != nil {
		return []string{fmt.Sprintf("durable block count check failed: %v", err)}
	}
	if durableCount != h.BlockCount {
		return []string{fmt.Sprintf("durable store has %d block(s), in-memory chain has %d", durableCount, h.BlockCount)}
	}

	if h.BlockCount == 0 {
		return nil
	}

	tip, err := s.engine.GetBlock(int64(h.BlockCount - 1))
	if err != nil {
		return []string{fmt.Sprintf("in-memory tip block %d missing: %v", h.BlockCount-1, err)}
	}

	durableBlocks, err := s.persister.LoadBlocks(ctx)
	if err != nil {
		return []string{fmt.Sprintf("load durable blocks failed: %v", err)}
	}
	if len(durableBlocks) == 0 {
		return []string{"durable store reports blocks but returned none"}
	}

	durableTip := durableBlocks[len(durableBlocks)-1]
	if durableTip.Hash != tip.Hash {
		return []string{fmt.Sprintf("durable tip hash %s does not match in-memory tip hash %s", durableTip.Hash, tip.Hash)}
	}
	return nil
}

func (s *Supervisor) record(r Result) {
	s.mu.Lock()
	s.lastResult = r
	s.mu.Unlock()
}
