package chain

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"solana-trade-bot-go/internal/config"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is the narrow view of the Solana RPC surface the settlement engine
// consumes. Implementations must honor the context deadline on every call;
// finalized confirmation can take tens of seconds.
type Client interface {
	// FindTokenAccount returns the owner's token account for the mint.
	// A missing account is reported via found=false, not an error.
	FindTokenAccount(ctx context.Context, owner, mint solana.PublicKey) (account solana.PublicKey, found bool, err error)

	// TokenAccountBalance returns the raw token balance of an account.
	TokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)

	// LatestBlockhash fetches a fresh finalized blockhash.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)

	// SendAndConfirm submits a signed transaction and blocks until it
	// reaches finalized confirmation or the context expires.
	SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// RPCClient talks to a Solana JSON-RPC node. It implements the Client
// interface.
type RPCClient struct {
	rpc            *rpc.Client
	logger         *zap.Logger
	limiter        *rate.Limiter
	callTimeout    time.Duration
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// ensure RPCClient implements the interface
var _ Client = (*RPCClient)(nil)

// NewRPCClient creates a rate-limited Solana RPC client.
func NewRPCClient(cfg *config.Solana, logger *zap.Logger) *RPCClient {
	logger.Info("Using Solana RPC node", zap.String("endpoint", cfg.RPCNode))

	return &RPCClient{
		rpc:            rpc.New(cfg.RPCNode),
		logger:         logger.Named("chain"),
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		callTimeout:    time.Duration(cfg.CallTimeout) * time.Second,
		confirmTimeout: time.Duration(cfg.ConfirmTimeout) * time.Second,
		pollInterval:   2 * time.Second,
	}
}

// withCallTimeout bounds a single RPC round-trip. The caller's deadline
// still applies when it is shorter.
func (c *RPCClient) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.callTimeout)
}

// FindTokenAccount looks up the owner's token account for a mint via
// getTokenAccountsByOwner. Owners normally hold at most one account per
// mint; the first is used.
func (c *RPCClient) FindTokenAccount(ctx context.Context, owner, mint solana.PublicKey) (solana.PublicKey, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return solana.PublicKey{}, false, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	callCtx, cancel := c.withCallTimeout(ctx)
	defer cancel()

	out, err := c.rpc.GetTokenAccountsByOwner(
		callCtx,
		owner,
		&rpc.GetTokenAccountsConfig{Mint: &mint},
		&rpc.GetTokenAccountsOpts{
			Commitment: rpc.CommitmentFinalized,
			Encoding:   solana.EncodingBase64,
		},
	)
	if err != nil {
		return solana.PublicKey{}, false, fmt.Errorf("failed to get token accounts for owner: %w", err)
	}

	if len(out.Value) == 0 {
		return solana.PublicKey{}, false, nil
	}
	return out.Value[0].Pubkey, true, nil
}

// TokenAccountBalance returns the raw (undivided) token amount held by an
// account at finalized commitment.
func (c *RPCClient) TokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	callCtx, cancel := c.withCallTimeout(ctx)
	defer cancel()

	out, err := c.rpc.GetTokenAccountBalance(callCtx, account, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to get token account balance: %w", err)
	}

	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token balance %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

// LatestBlockhash fetches a fresh finalized blockhash. A stale blockhash is
// guaranteed to be rejected by the network, so callers fetch one per
// submission attempt.
func (c *RPCClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return solana.Hash{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	callCtx, cancel := c.withCallTimeout(ctx)
	defer cancel()

	out, err := c.rpc.GetLatestBlockhash(callCtx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// SendAndConfirm submits the transaction and polls signature statuses until
// it is finalized. The overall wait is bounded by confirmTimeout on top of
// whatever deadline the caller carries.
func (c *RPCClient) SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return solana.Signature{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	sendCtx, cancel := c.withCallTimeout(ctx)
	sig, err := c.rpc.SendTransactionWithOpts(sendCtx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	cancel()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Debug("Transaction submitted, awaiting finalized confirmation",
		zap.Stringer("signature", sig))

	confirmCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-confirmCtx.Done():
			return sig, fmt.Errorf("confirmation wait for %s: %w", sig, confirmCtx.Err())
		case <-ticker.C:
		}

		if err := c.limiter.Wait(confirmCtx); err != nil {
			return sig, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		out, err := c.rpc.GetSignatureStatuses(confirmCtx, true, sig)
		if err != nil {
			c.logger.Warn("Failed to poll signature status, retrying",
				zap.Stringer("signature", sig), zap.Error(err))
			continue
		}

		if len(out.Value) == 0 || out.Value[0] == nil {
			continue // not yet visible to the node
		}

		status := out.Value[0]
		if status.Err != nil {
			return sig, fmt.Errorf("transaction %s failed on-chain: %v", sig, status.Err)
		}
		if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			c.logger.Debug("Transaction finalized", zap.Stringer("signature", sig))
			return sig, nil
		}
	}
}
