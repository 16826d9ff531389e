package chain

import (
	"context"
	"errors"
	"fmt"

	"raffler/domain/entities"

	"github.com/dogecoinw/doged/btcjson"
	"github.com/dogecoinw/doged/btcutil"
	"github.com/dogecoinw/doged/chaincfg"
	"github.com/dogecoinw/doged/chaincfg/chainhash"
	"github.com/dogecoinw/doged/rpcclient"
	log "github.com/sirupsen/logrus"
)

// transferLookback is how many recent wallet transactions FindTransfer scans
const transferLookback = 1000

// nodeRPC is the subset of the node RPC API the engine uses
type nodeRPC interface {
	GetBlockCount() (int64, error)
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
	GetRawTransactionVerboseBool(txHash *chainhash.Hash) (*btcjson.TxRawResult, error)
	SendToAddressComment(address btcutil.Address, amount btcutil.Amount, comment, commentTo string) (*chainhash.Hash, error)
	ListTransactionsCount(account string, count int) ([]btcjson.ListTransactionsResult, error)
}

// ErrorRecorder counts failed RPC calls
type ErrorRecorder interface {
	RecordChainRPCError(method string)
}

// Config holds the node connection settings
type Config struct {
	Host string
	User string
	Pass string
}

// Client reads blocks and transactions from a Dogecoin node and sends
// prize transfers from the node wallet
type Client struct {
	node    nodeRPC
	params  *chaincfg.Params
	metrics ErrorRecorder
}

// NewClient connects to the node over HTTP POST mode
func NewClient(cfg Config, metrics ErrorRecorder) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	rpc, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chain RPC client: %w", err)
	}

	log.WithField("host", cfg.Host).Info("Created chain RPC client")
	return newClient(rpc, &chaincfg.MainNetParams, metrics), nil
}

func newClient(node nodeRPC, params *chaincfg.Params, metrics ErrorRecorder) *Client {
	return &Client{node: node, params: params, metrics: metrics}
}

// LatestBlock returns the current chain tip
func (c *Client) LatestBlock(ctx context.Context) (*entities.BlockRef, error) {
	height, err := call(ctx, func() (int64, error) { return c.node.GetBlockCount() })
	if err != nil {
		c.recordError("getblockcount")
		return nil, fmt.Errorf("failed to get block count: %w", err)
	}
	return c.BlockAt(ctx, height)
}

// BlockAt returns the block at height number
func (c *Client) BlockAt(ctx context.Context, number int64) (*entities.BlockRef, error) {
	hash, err := call(ctx, func() (*chainhash.Hash, error) { return c.node.GetBlockHash(number) })
	if err != nil {
		c.recordError("getblockhash")
		return nil, fmt.Errorf("failed to get block hash at height %d: %w", number, err)
	}
	return &entities.BlockRef{Number: number, Hash: hash.String()}, nil
}

// GetTransaction returns the receipt of txHash, or nil if the node does not know it
func (c *Client) GetTransaction(ctx context.Context, txHash string) (*entities.TransferReceipt, error) {
	hash, err := chainhash.NewHashFromStr(txHash)
	if err != nil {
		return nil, nil
	}

	tx, err := c.rawTransaction(ctx, hash)
	if err != nil {
		if isNoTxInfo(err) {
			return nil, nil
		}
		c.recordError("getrawtransaction")
		return nil, fmt.Errorf("failed to get transaction %s: %w", txHash, err)
	}

	receipt := &entities.TransferReceipt{
		TxHash:        tx.Txid,
		Succeeded:     tx.Confirmations > 0,
		Confirmations: int64(tx.Confirmations),
		BlockHash:     tx.BlockHash,
	}

	for _, out := range tx.Vout {
		if len(out.ScriptPubKey.Addresses) == 0 {
			continue
		}
		amount, err := btcutil.NewAmount(out.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid output value in %s: %w", txHash, err)
		}
		receipt.Outputs = append(receipt.Outputs, entities.TransferOutput{
			Address: out.ScriptPubKey.Addresses[0],
			Amount:  int64(amount),
		})
	}

	sender, err := c.sender(ctx, tx)
	if err != nil {
		return nil, err
	}
	receipt.Sender = sender

	return receipt, nil
}

// sender resolves the address that funded the first input
func (c *Client) sender(ctx context.Context, tx *btcjson.TxRawResult) (string, error) {
	if len(tx.Vin) == 0 || tx.Vin[0].Txid == "" {
		return "", nil
	}

	prevHash, err := chainhash.NewHashFromStr(tx.Vin[0].Txid)
	if err != nil {
		return "", nil
	}

	prev, err := c.rawTransaction(ctx, prevHash)
	if err != nil {
		c.recordError("getrawtransaction")
		return "", fmt.Errorf("failed to resolve sender of %s: %w", tx.Txid, err)
	}

	idx := tx.Vin[0].Vout
	if int(idx) >= len(prev.Vout) || len(prev.Vout[idx].ScriptPubKey.Addresses) == 0 {
		return "", nil
	}
	return prev.Vout[idx].ScriptPubKey.Addresses[0], nil
}

func (c *Client) rawTransaction(ctx context.Context, hash *chainhash.Hash) (*btcjson.TxRawResult, error) {
	return call(ctx, func() (*btcjson.TxRawResult, error) { return c.node.GetRawTransactionVerboseBool(hash) })
}

// Send transfers amount koinu from the node wallet to wallet. reference is
// kept as the wallet comment on the transaction.
func (c *Client) Send(ctx context.Context, wallet string, amount int64, reference string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("transfer amount must be positive, got %d", amount)
	}

	addr, err := btcutil.DecodeAddress(wallet, c.params)
	if err != nil {
		return "", fmt.Errorf("invalid wallet address %q: %w", wallet, err)
	}

	hash, err := call(ctx, func() (*chainhash.Hash, error) {
		return c.node.SendToAddressComment(addr, btcutil.Amount(amount), reference, "")
	})
	if err != nil {
		c.recordError("sendtoaddress")
		return "", fmt.Errorf("failed to send %d to %s: %w", amount, wallet, err)
	}

	log.WithFields(log.Fields{
		"wallet":    wallet,
		"amount":    amount,
		"reference": reference,
		"tx_id":     hash.String(),
	}).Info("Submitted prize transfer")
	return hash.String(), nil
}

// FindTransfer scans the node wallet's recent sends for one commented with
// reference
func (c *Client) FindTransfer(ctx context.Context, reference string) (string, error) {
	if reference == "" {
		return "", nil
	}
	txs, err := call(ctx, func() ([]btcjson.ListTransactionsResult, error) {
		return c.node.ListTransactionsCount("*", transferLookback)
	})
	if err != nil {
		c.recordError("listtransactions")
		return "", fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	for _, tx := range txs {
		if tx.Category == "send" && tx.Comment == reference && !tx.Abandoned {
			return tx.TxID, nil
		}
	}
	return "", nil
}

func (c *Client) recordError(method string) {
	if c.metrics != nil {
		c.metrics.RecordChainRPCError(method)
	}
}

// isNoTxInfo reports whether the node answered that it has no such transaction
func isNoTxInfo(err error) bool {
	var rpcErr *btcjson.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Code == btcjson.ErrRPCNoTxInfo || rpcErr.Code == btcjson.ErrRPCInvalidAddressOrKey
}

// call runs a blocking RPC and gives up when ctx is done. The RPC itself
// keeps running until the node answers.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
