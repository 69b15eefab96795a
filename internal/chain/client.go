// Package chain provides the Base-chain gateway for the MINIIS3 lottery
// contract. It is the sole interface to on-chain state: round reads, the
// winning-number commit, and round advancement.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/miniis3/lotteryd/pkg/logger"
)

// Config holds gateway configuration.
type Config struct {
	RPCURL          string
	ContractAddress string
	OwnerPrivateKey string
	ChainID         int64
	Timeout         time.Duration // per-read request timeout
	ReadRateLimit   int           // reads per second against the RPC provider
}

// Client talks JSON-RPC to the lottery contract with the operator key.
type Client struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	timeout  time.Duration
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewClient dials the RPC endpoint and binds the lottery contract.
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	if log == nil {
		log = logger.NewDefault("chain")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	readRate := cfg.ReadRateLimit
	if readRate <= 0 {
		readRate = 20
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OwnerPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse owner key: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}

	parsed, err := abi.JSON(strings.NewReader(lotteryABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	addr := common.HexToAddress(cfg.ContractAddress)
	return &Client{
		eth:      eth,
		contract: bind.NewBoundContract(addr, parsed, eth, eth, eth),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Limit(readRate), readRate),
		log:      log,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) call(ctx context.Context, out *[]interface{}, method string, args ...interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.contract.Call(&bind.CallOpts{Context: callCtx, From: c.from}, out, method, args...); err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	return nil
}

// CurrentRound returns the contract's active round number.
func (c *Client) CurrentRound(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "currentRound"); err != nil {
		return 0, err
	}
	round := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return round.Uint64(), nil
}

// RoundClosed reports whether winning numbers were already committed for the round.
func (c *Client) RoundClosed(ctx context.Context, round uint64) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "roundClosed", new(big.Int).SetUint64(round)); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// WinningNumbers reads the five committed numbers for a closed round.
func (c *Client) WinningNumbers(ctx context.Context, round uint64) ([5]uint8, error) {
	var numbers [5]uint8
	bigRound := new(big.Int).SetUint64(round)
	for i := 0; i < 5; i++ {
		var out []interface{}
		if err := c.call(ctx, &out, "winningNumbers", bigRound, big.NewInt(int64(i))); err != nil {
			return numbers, err
		}
		numbers[i] = *abi.ConvertType(out[0], new(uint8)).(*uint8)
	}
	return numbers, nil
}

// SelectedNumber returns the lowercased address holding the given number for
// the round, or the empty string when the slot is unselected.
func (c *Client) SelectedNumber(ctx context.Context, round uint64, number uint8) (string, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "selectedNumbers", new(big.Int).SetUint64(round), number); err != nil {
		return "", err
	}
	addr := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if addr == (common.Address{}) {
		return "", nil
	}
	return strings.ToLower(addr.Hex()), nil
}

// RewardPerMatch returns the pool-wide reward per matched number in 6-decimal
// fixed-point USDC units.
func (c *Client) RewardPerMatch(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "rewardPerMatch"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// BetAmount returns the fixed stake per selection in USDC units.
func (c *Client) BetAmount(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "betAmount"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// PoolBalance returns the contract's payout pool balance.
func (c *Client) PoolBalance(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getPoolBalance"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// SetWinningNumbers commits the round's winning numbers. Reverts on-chain if
// the round is already closed.
func (c *Client) SetWinningNumbers(ctx context.Context, numbers [5]uint8) error {
	return c.transact(ctx, "setWinningNumbers", numbers)
}

// StartNewRound advances the contract to the next round.
func (c *Client) StartNewRound(ctx context.Context) error {
	return c.transact(ctx, "startNewRound")
}

// transact sends a state-changing transaction and waits for its receipt. A
// missing confirmation or a reverted receipt is an error; callers must not
// proceed to dependent steps when one is returned.
func (c *Client) transact(ctx context.Context, method string, args ...interface{}) error {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return fmt.Errorf("confirm %s (tx %s): %w", method, tx.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s reverted (tx %s)", method, tx.Hash())
	}

	c.log.WithField("method", method).
		WithField("tx", tx.Hash().Hex()).
		WithField("block", receipt.BlockNumber).
		Info("transaction confirmed")
	return nil
}
