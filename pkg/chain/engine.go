// Package chain implements the single-writer chain engine: the
// pending pool, replay set, rate limiter, validator set, difficulty
// adjustment and admission control that turn signed transactions into
// a sealed, linked, proof-of-work chain (spec §4.6, §5).
package chain

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/agrichain/ledgercore/pkg/block"
	"github.com/agrichain/ledgercore/pkg/crypto"
	"github.com/agrichain/ledgercore/pkg/keystore"
	"github.com/agrichain/ledgercore/pkg/transaction"
)

// Engine is the single logical owner of all chain state. Every
// mutation — admission, sealing, reload, reset — is serialized
// through mu; two sealing operations or two concurrent admissions
// must never interleave (§5).
type Engine struct {
	mu sync.Mutex

	cfg Config

	chain   []*block.Block
	pending []*transaction.Transaction

	replaySet map[string]struct{} // tx.Hash
	nonceSet  map[string]struct{} // tx.Nonce

	validators map[int64]struct{}

	currentDifficulty int

	rateLimiter *rateLimiter
	keys        *keystore.Manager
	persister   Persister

	logger *log.Logger
}

// NewEngine constructs an engine. Callers must call Initialize before
// admitting transactions. persister may be nil for an in-memory-only
// engine (tests); keys may be nil if blocks are never signed.
func NewEngine(cfg Config, keys *keystore.Manager, persister Persister, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[chain] ", log.LstdFlags)
	}
	return &Engine{
		cfg:               cfg,
		replaySet:         make(map[string]struct{}),
		nonceSet:          make(map[string]struct{}),
		validators:        make(map[int64]struct{}),
		currentDifficulty: cfg.InitialDifficulty,
		rateLimiter:       newRateLimiter(cfg.RateWindow, cfg.RateMax),
		keys:              keys,
		persister:         persister,
		logger:            logger,
	}
}

// Initialize performs the startup reload (§4.7 Startup reload): if no
// blocks exist, synthesizes and persists genesis; otherwise reloads
// the full chain, replay set and validator set from the store.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.Reload(ctx)
}

// Reload clears in-memory chain/pending/replay state and rebuilds it
// from the persister (§4.7 Startup reload; also used by the health
// supervisor's auto-recovery path).
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reloadLocked(ctx)
}

func (e *Engine) reloadLocked(ctx context.Context) error {
	e.pending = nil
	e.replaySet = make(map[string]struct{})
	e.nonceSet = make(map[string]struct{})

	if e.persister == nil {
		g, err := block.NewGenesis()
		if err != nil {
			return err
		}
		e.chain = []*block.Block{g}
		e.currentDifficulty = e.cfg.InitialDifficulty
		return nil
	}

	count, err := e.persister.CountBlocks(ctx)
	if err != nil {
		return fmt.Errorf("chain: count blocks: %w", err)
	}

	if count == 0 {
		g, err := block.NewGenesis()
		if err != nil {
			return err
		}
		if err := e.persister.PersistBlock(ctx, g); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		}
		g.Seal()
		e.chain = []*block.Block{g}
	} else {
		blocks, err := e.persister.LoadBlocks(ctx)
		if err != nil {
			return fmt.Errorf("chain: load blocks: %w", err)
		}
		e.chain = blocks
		for _, b := range blocks {
			for _, tx := range b.Transactions {
				e.replaySet[tx.Hash] = struct{}{}
				e.nonceSet[tx.Nonce] = struct{}{}
			}
		}

		if e.cfg.StrictReloadVerification {
			if err := e.verifyLoadedSignaturesLocked(); err != nil {
				return fmt.Errorf("%w: %v", ErrIntegrityFailed, err)
			}
		}
	}

	validators, err := e.persister.LoadValidators(ctx)
	if err != nil {
		return fmt.Errorf("chain: load validators: %w", err)
	}
	if len(validators) == 0 {
		validators = []int64{1}
	}
	e.validators = make(map[int64]struct{}, len(validators))
	for _, v := range validators {
		e.validators[v] = struct{}{}
	}

	if len(e.chain) > 0 {
		e.currentDifficulty = e.chain[len(e.chain)-1].Difficulty
	}

	if err := e.validateChainLocked(); err != nil {
		e.logger.Printf("validation failed after reload: %v", err)
	}
	return nil
}

// AddTransaction admits tx into the pending pool (§4.6 Admission).
// If admission brings the pool to BlockSize, a block is auto-sealed
// and returned in the result, with validatorUserID used to sign it if
// non-nil.
func (e *Engine) AddTransaction(ctx context.Context, tx *transaction.Transaction, validatorUserID *int64) (*AddResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if err := tx.Validate(now); err != nil {
		return nil, fmt.Errorf("%w: %v", transaction.ErrInvalid, err)
	}
	if tx.IsStale(now) {
		e.logger.Printf("transaction %s timestamp is more than %s old", tx.Hash, transaction.StaleWarning)
	}

	if _, exists := e.replaySet[tx.Hash]; exists {
		return nil, fmt.Errorf("%w: hash %s already admitted", ErrReplay, tx.Hash)
	}
	if _, exists := e.nonceSet[tx.Nonce]; exists {
		return nil, fmt.Errorf("%w: nonce already admitted", ErrReplay)
	}

	if !e.rateLimiter.Allow(tx.ActorUserID, now) {
		return nil, fmt.Errorf("%w: actor %d", ErrRateLimited, tx.ActorUserID)
	}

	e.pending = append(e.pending, tx)
	e.replaySet[tx.Hash] = struct{}{}
	e.nonceSet[tx.Nonce] = struct{}{}

	result := &AddResult{Transaction: tx, PendingCount: len(e.pending)}

	if len(e.pending) >= e.cfg.BlockSize {
		b, err := e.sealLocked(ctx, validatorUserID)
		if err != nil {
			return nil, err
		}
		result.Block = b
		result.PendingCount = len(e.pending)
	}

	return result, nil
}

// Seal forces a block from the current pending pool, if any (§4.6
// Sealing). Returns (nil, nil) if the pending pool is empty.
func (e *Engine) Seal(ctx context.Context, validatorUserID *int64) (*block.Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sealLocked(ctx, validatorUserID)
}

func (e *Engine) sealLocked(ctx context.Context, validatorUserID *int64) (*block.Block, error) {
	if len(e.pending) == 0 {
		return nil, nil
	}

	tip := e.tipLocked()
	blockNumber := tip.BlockNumber + 1
	previousHash := tip.Hash

	difficulty := e.currentDifficulty
	if e.cfg.AdjustEvery > 0 && blockNumber%int64(e.cfg.AdjustEvery) == 0 {
		difficulty = e.adjustDifficultyLocked(difficulty, blockNumber)
	}

	n := len(e.pending)
	if e.cfg.BlockSize > 0 && n > e.cfg.BlockSize {
		n = e.cfg.BlockSize
	}
	batch := append([]*transaction.Transaction{}, e.pending[:n]...)
	remaining := append([]*transaction.Transaction{}, e.pending[n:]...)

	b, err := block.New(blockNumber, previousHash, batch, difficulty)
	if err != nil {
		return nil, fmt.Errorf("chain: instantiate block: %w", err)
	}
	var validatorPriv string
	if validatorUserID != nil && e.keys != nil {
		priv, err := e.keys.GetPrivate(ctx, *validatorUserID)
		if err != nil {
			e.logger.Printf("validator %d keys not loadable, sealing unsigned: %v", *validatorUserID, err)
		} else {
			pub, ok, err := e.keys.GetPublic(ctx, *validatorUserID)
			if err != nil || !ok {
				e.logger.Printf("validator %d public key not loadable, sealing unsigned: %v", *validatorUserID, err)
			} else {
				// validator_user_id and validator_public_key are part of
				// the hashed block identity, so they are set before mining.
				id := *validatorUserID
				b.ValidatorUserID = &id
				b.ValidatorPublicKey = pub
				validatorPriv = priv
			}
		}
	}

	if _, err := b.Mine(); err != nil {
		return nil, fmt.Errorf("chain: mine block: %w", err)
	}

	if validatorPriv != "" {
		if err := b.Sign(*validatorUserID, validatorPriv, b.ValidatorPublicKey); err != nil {
			e.logger.Printf("validator %d signing failed, sealing unsigned: %v", *validatorUserID, err)
		}
	}

	if e.persister != nil {
		if err := e.persister.PersistBlock(ctx, b); err != nil {
			// The in-memory chain has not been advanced yet, so there
			// is nothing to roll back: pending stays exactly as it
			// was before this call.
			return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		}
	}

	b.Seal()
	e.chain = append(e.chain, b)
	e.pending = remaining
	e.currentDifficulty = difficulty

	return b, nil
}

// adjustDifficultyLocked applies §4.6 step 3: inspect the wall-clock
// span of the previous AdjustEvery blocks and move difficulty toward
// TargetBlockTime.
func (e *Engine) adjustDifficultyLocked(current int, blockNumber int64) int {
	adjustEvery := int64(e.cfg.AdjustEvery)
	firstIdx := blockNumber - adjustEvery
	lastIdx := blockNumber - 1
	if firstIdx < 0 || int(lastIdx) >= len(e.chain) || int(firstIdx) >= len(e.chain) {
		return current
	}

	deltaT := e.chain[lastIdx].Timestamp.Sub(e.chain[firstIdx].Timestamp)
	expected := e.cfg.TargetBlockTime * time.Duration(e.cfg.AdjustEvery)

	switch {
	case deltaT < expected/2:
		return current + 1
	case deltaT > expected*2:
		if current > 1 {
			return current - 1
		}
		return 1
	default:
		return current
	}
}

func (e *Engine) tipLocked() *block.Block {
	return e.chain[len(e.chain)-1]
}

// ValidateChain reports whether the in-memory chain currently
// satisfies B-1..B-4 and linkage/numbering end to end (§4.6 Chain
// validation, P1-P4).
func (e *Engine) ValidateChain() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validateChainLocked() == nil
}

func (e *Engine) validateChainLocked() error {
	if len(e.chain) == 0 {
		return fmt.Errorf("%w: no genesis block", ErrIntegrityFailed)
	}
	genesis := e.chain[0]
	if genesis.PreviousHash != "0" || genesis.BlockNumber != 0 {
		return fmt.Errorf("%w: malformed genesis", ErrIntegrityFailed)
	}

	prevHash := genesis.Hash
	for i := 1; i < len(e.chain); i++ {
		b := e.chain[i]
		if b.BlockNumber != int64(i) {
			return fmt.Errorf("%w: block at index %d has block_number %d", ErrIntegrityFailed, i, b.BlockNumber)
		}
		if err := b.Validate(prevHash); err != nil {
			return fmt.Errorf("%w: block %d: %v", ErrIntegrityFailed, i, err)
		}
		prevHash = b.Hash
	}
	return nil
}

// verifyLoadedSignaturesLocked recomputes every loaded block's and
// transaction's hash from its canonical form and re-checks every
// transaction's signature, rather than trusting the stored hashes
// (strict reload verification, Open Question: reload trust model).
func (e *Engine) verifyLoadedSignaturesLocked() error {
	for _, b := range e.chain {
		if crypto.Hash([]byte(b.Canonical())) != b.Hash {
			return fmt.Errorf("block %d: stored hash does not match its canonical form", b.BlockNumber)
		}
		for _, tx := range b.Transactions {
			if crypto.Hash([]byte(tx.Canonical())) != tx.Hash {
				return fmt.Errorf("transaction %s: stored hash does not match its canonical form", tx.Hash)
			}
			ok, err := tx.VerifySignature()
			if err != nil {
				return fmt.Errorf("transaction %s: %w", tx.Hash, err)
			}
			if !ok {
				return fmt.Errorf("transaction %s: signature verification failed", tx.Hash)
			}
		}
	}
	return nil
}

// AddValidator adds userID to the validator set and persists it.
func (e *Engine) AddValidator(ctx context.Context, userID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validators[userID] = struct{}{}
	return e.saveValidatorsLocked(ctx)
}

// IsValidator reports whether userID is a known validator.
func (e *Engine) IsValidator(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.validators[userID]
	return ok
}

func (e *Engine) saveValidatorsLocked(ctx context.Context) error {
	if e.persister == nil {
		return nil
	}
	ids := make([]int64, 0, len(e.validators))
	for id := range e.validators {
		ids = append(ids, id)
	}
	return e.persister.SaveValidators(ctx, ids)
}

// ClearRateLimits drops all per-user rate counters (§6
// clear_rate_limits).
func (e *Engine) ClearRateLimits() {
	e.rateLimiter.Clear()
}

// Reset is the explicit operator-initiated wipe (§4.7 Reset, §7
// OperatorOnly): it deletes all durable rows, clears in-memory state
// and re-initializes with a fresh genesis.
func (e *Engine) Reset(ctx context.Context, isOperator bool) (int, error) {
	if !isOperator {
		return 0, ErrOperatorOnly
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.persister != nil {
		if err := e.persister.Reset(ctx); err != nil {
			return 0, fmt.Errorf("chain: reset persistence: %w", err)
		}
	}
	if err := e.reloadLocked(ctx); err != nil {
		return 0, err
	}
	return len(e.chain), nil
}
