package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"golang.org/x/time/rate"
)

// RPCClient talks to a ledger node over JSON-RPC using solana-go's client.
// Each call first waits on a rate limiter so public endpoints are not flooded.
type RPCClient struct {
	rpc              *rpc.Client
	commitment       rpc.CommitmentType
	limiter          *rate.Limiter
	broadcastRetries *uint
}

// Compile-time interface check.
var _ LedgerService = (*RPCClient)(nil)

// NewRPCClient creates a client for cfg.URL. A RequestsPerSecond of zero
// disables throttling.
func NewRPCClient(cfg RPCConfig) *RPCClient {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	commitment := rpc.CommitmentType(cfg.Commitment)
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	c := &RPCClient{
		rpc:        rpc.New(cfg.URL),
		commitment: commitment,
		limiter:    rate.NewLimiter(limit, 1),
	}
	if cfg.BroadcastRetries > 0 {
		n := cfg.BroadcastRetries
		c.broadcastRetries = &n
	}
	return c
}

func (c *RPCClient) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// classify separates node-reported errors from transport failures.
func classify(op string, err error) error {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("network: %s: rpc error %d: %s", op, rpcErr.Code, rpcErr.Message)
	}
	return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, op, err)
}

// GetAccount fetches an account with base64 encoding.
func (c *RPCClient) GetAccount(ctx context.Context, address solana.PublicKey) (*Account, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if err != nil {
		return nil, classify("getAccountInfo", err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	var data []byte
	if out.Value.Data != nil {
		data = out.Value.Data.GetBinary()
	}
	return &Account{
		Address:    address,
		Owner:      out.Value.Owner,
		Lamports:   out.Value.Lamports,
		Data:       data,
		Executable: out.Value.Executable,
	}, nil
}

// GetBalance returns the lamport balance of address.
func (c *RPCClient) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	out, err := c.rpc.GetBalance(ctx, address, c.commitment)
	if err != nil {
		return 0, classify("getBalance", err)
	}
	if out == nil {
		return 0, fmt.Errorf("%w: getBalance returned no result", ErrInvalidResponse)
	}
	return out.Value, nil
}

// GetSlot returns the current slot.
func (c *RPCClient) GetSlot(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	slot, err := c.rpc.GetSlot(ctx, c.commitment)
	if err != nil {
		return 0, classify("getSlot", err)
	}
	return slot, nil
}

// GetLatestBlockhash returns a recent blockhash usable for signing.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := c.wait(ctx); err != nil {
		return solana.Hash{}, err
	}
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, classify("getLatestBlockhash", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("%w: getLatestBlockhash returned no value", ErrInvalidResponse)
	}
	return out.Value.Blockhash, nil
}

// SendTransaction broadcasts tx with preflight simulation disabled. The local
// simulator cannot see the foreign-program state the register instruction
// validates, so acceptance is judged by confirmation polling instead.
func (c *RPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := c.wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: c.commitment,
		MaxRetries:          c.broadcastRetries,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrBroadcastRejected, err)
	}
	return sig, nil
}

// GetSignatureStatus returns the status of sig, searching transaction history.
func (c *RPCClient) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, classify("getSignatureStatuses", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return nil, nil
	}
	st := out.Value[0]
	return &SignatureStatus{
		Slot:          st.Slot,
		Confirmations: st.Confirmations,
		Err:           st.Err,
		Commitment:    string(st.ConfirmationStatus),
	}, nil
}

// GetTransactionLogs returns the log messages recorded for a landed transaction.
func (c *RPCClient) GetTransactionLogs(ctx context.Context, sig solana.Signature) ([]string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("getTransaction", err)
	}
	if out == nil || out.Meta == nil {
		return nil, nil
	}
	return out.Meta.LogMessages, nil
}
