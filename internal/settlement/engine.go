package settlement

import (
	"context"
	"fmt"
	"time"

	"solana-trade-bot-go/internal/chain"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"
)

// RetryPolicy bounds the close-account submission loop.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy matches the network reality of a congested RPC node:
// three attempts, two seconds apart.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Backoff:     2 * time.Second,
}

// Engine performs final on-chain settlement for an exited position: burn
// whatever token balance remains, then close the token account so the rent
// lamports return to the owner.
//
// Settle is idempotent per (owner, mint): once the account is closed, later
// calls find no account and succeed without touching the chain. It is NOT
// safe to call concurrently for the same (owner, mint); the caller owns
// serialization per token.
type Engine struct {
	client chain.Client
	logger *zap.Logger
	policy RetryPolicy

	// sleep is swapped out in tests so retry backoff does not wall-clock.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates a settlement engine. A zero-valued policy falls back to
// DefaultRetryPolicy.
func NewEngine(client chain.Client, logger *zap.Logger, policy RetryPolicy) *Engine {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}
	return &Engine{
		client: client,
		logger: logger.Named("settlement"),
		policy: policy,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Settle guarantees that, on success, the owner holds no token account for
// the given mint. Steps: verify the signing key against the declared owner,
// locate the token account (absent account is a finished settlement), burn
// any remaining balance, then close the account under the retry policy.
// Nothing in the ledger is touched here; archival is the caller's second
// step.
func (e *Engine) Settle(ctx context.Context, tokenMint, ownerAddress, signingSecret string) error {
	key, err := ParseSigningKey(signingSecret)
	if err != nil {
		return err
	}

	owner, err := solana.PublicKeyFromBase58(ownerAddress)
	if err != nil {
		return fmt.Errorf("invalid owner address %q: %w", ownerAddress, err)
	}
	if !key.PublicKey().Equals(owner) {
		return fmt.Errorf("%w: key resolves to %s, owner is %s", ErrOwnerMismatch, key.PublicKey(), owner)
	}

	mint, err := solana.PublicKeyFromBase58(tokenMint)
	if err != nil {
		return fmt.Errorf("invalid token mint %q: %w", tokenMint, err)
	}

	l := e.logger.With(
		zap.Stringer("mint", mint),
		zap.Stringer("owner", owner),
	)

	account, found, err := e.client.FindTokenAccount(ctx, owner, mint)
	if err != nil {
		return fmt.Errorf("failed to locate token account: %w", err)
	}
	if !found {
		// Already closed (or never opened). Repeat settlements land here.
		l.Info("No token account found for mint, nothing to settle")
		return nil
	}

	balance, err := e.client.TokenAccountBalance(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to read token balance: %w", err)
	}

	if balance > 0 {
		if err := e.burn(ctx, key, account, mint, owner, balance); err != nil {
			return err
		}
		l.Info("Burned residual token balance", zap.Uint64("amount", balance))
	}

	if err := e.closeAccount(ctx, key, account, owner); err != nil {
		return err
	}
	l.Info("Token account closed")
	return nil
}

// burn submits a burn of the full balance and waits for finalized
// confirmation. A burn failure aborts the settlement; the account must
// never be closed while tokens remain in it.
func (e *Engine) burn(ctx context.Context, key solana.PrivateKey, account, mint, owner solana.PublicKey, amount uint64) error {
	blockhash, err := e.client.LatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("%w: could not fetch blockhash: %v", ErrBurnFailed, err)
	}

	ix := token.NewBurnInstruction(amount, account, mint, owner, nil).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(owner),
	)
	if err != nil {
		return fmt.Errorf("%w: could not build transaction: %v", ErrBurnFailed, err)
	}
	if _, err := tx.Sign(signerFor(key)); err != nil {
		return fmt.Errorf("%w: could not sign transaction: %v", ErrBurnFailed, err)
	}

	sig, err := e.client.SendAndConfirm(ctx, tx)
	if err != nil {
		return fmt.Errorf("%w: burning %d tokens: %v", ErrBurnFailed, amount, err)
	}

	e.logger.Debug("Burn confirmed", zap.Stringer("signature", sig))
	return nil
}

// closeAccount submits the close-account instruction under the retry
// policy. Every attempt gets a freshly fetched blockhash; a reused one is
// guaranteed stale by the time a failed attempt comes back.
func (e *Engine) closeAccount(ctx context.Context, key solana.PrivateKey, account, owner solana.PublicKey) error {
	ix := token.NewCloseAccountInstruction(account, owner, owner, nil).Build()

	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		lastErr = e.submitClose(ctx, key, ix, owner)
		if lastErr == nil {
			return nil
		}

		e.logger.Warn("Close attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.policy.MaxAttempts),
			zap.Error(lastErr),
		)

		if attempt < e.policy.MaxAttempts {
			if err := e.sleep(ctx, e.policy.Backoff); err != nil {
				return fmt.Errorf("%w: %v", ErrSettlementFailed, err)
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrSettlementFailed, e.policy.MaxAttempts, lastErr)
}

func (e *Engine) submitClose(ctx context.Context, key solana.PrivateKey, ix solana.Instruction, owner solana.PublicKey) error {
	blockhash, err := e.client.LatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(owner),
	)
	if err != nil {
		return fmt.Errorf("could not build transaction: %w", err)
	}
	if _, err := tx.Sign(signerFor(key)); err != nil {
		return fmt.Errorf("could not sign transaction: %w", err)
	}

	sig, err := e.client.SendAndConfirm(ctx, tx)
	if err != nil {
		return err
	}

	e.logger.Debug("Close confirmed", zap.Stringer("signature", sig))
	return nil
}

func signerFor(key solana.PrivateKey) func(solana.PublicKey) *solana.PrivateKey {
	return func(pub solana.PublicKey) *solana.PrivateKey {
		if key.PublicKey().Equals(pub) {
			return &key
		}
		return nil
	}
}
