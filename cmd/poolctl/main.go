package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/clmmcore/engine/calculator/tickmath"
	"github.com/clmmcore/engine/clmm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

type cliConfig struct {
	Token0      common.Address
	Token1      common.Address
	Owner       common.Address
	Fee         uint32
	TickSpacing int64
	InitialTick int64
	MintLower   int64
	MintUpper   int64
	MintAmount  *big.Int
	SwapAmount  *big.Int
	ZeroForOne  bool
}

func loadConfig() (*cliConfig, error) {
	token0 := flag.String("token0", "0x0000000000000000000000000000000000000A", "token0 address")
	token1 := flag.String("token1", "0x0000000000000000000000000000000000000B", "token1 address")
	owner := flag.String("owner", "0x0000000000000000000000000000000000000E", "pool owner address")
	fee := flag.Uint("fee", 3000, "fee tier in hundredths of a bip")
	tickSpacing := flag.Int64("tick-spacing", 60, "tick spacing")
	initialTick := flag.Int64("initial-tick", 0, "tick to initialize the pool at")
	mintLower := flag.Int64("mint-lower", -600, "lower tick of the demo position")
	mintUpper := flag.Int64("mint-upper", 600, "upper tick of the demo position")
	mintAmount := flag.String("mint-liquidity", "10000000", "liquidity to mint into the demo position")
	swapAmount := flag.String("swap-amount", "1000", "exact-input amount for the demo swap")
	zeroForOne := flag.Bool("zero-for-one", true, "swap direction for the demo swap")
	flag.Parse()

	if *tickSpacing <= 0 {
		return nil, fmt.Errorf("tick-spacing must be positive, got %d", *tickSpacing)
	}
	mintAmt, ok := new(big.Int).SetString(*mintAmount, 10)
	if !ok {
		return nil, fmt.Errorf("mint-liquidity %q is not a valid integer", *mintAmount)
	}
	swapAmt, ok := new(big.Int).SetString(*swapAmount, 10)
	if !ok {
		return nil, fmt.Errorf("swap-amount %q is not a valid integer", *swapAmount)
	}

	return &cliConfig{
		Token0:      common.HexToAddress(*token0),
		Token1:      common.HexToAddress(*token1),
		Owner:       common.HexToAddress(*owner),
		Fee:         uint32(*fee),
		TickSpacing: *tickSpacing,
		InitialTick: *initialTick,
		MintLower:   *mintLower,
		MintUpper:   *mintUpper,
		MintAmount:  mintAmt,
		SwapAmount:  swapAmt,
		ZeroForOne:  *zeroForOne,
	}, nil
}

// demoAccounts is the minimal Accounts/Payer implementation poolctl uses to
// drive a pool end to end without a real ledger behind it: every callback
// simply tops up its own balance sheet by the amount requested.
type demoAccounts struct {
	balances map[common.Address]*big.Int
}

func newDemoAccounts() *demoAccounts {
	return &demoAccounts{balances: map[common.Address]*big.Int{}}
}

func (d *demoAccounts) BalanceOf(token common.Address) (*big.Int, error) {
	if b, ok := d.balances[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (d *demoAccounts) Transfer(token, _ common.Address, amount *big.Int) error {
	d.credit(token, new(big.Int).Neg(amount))
	return nil
}

func (d *demoAccounts) credit(token common.Address, amount *big.Int) {
	bal, ok := d.balances[token]
	if !ok {
		bal = big.NewInt(0)
	}
	d.balances[token] = new(big.Int).Add(bal, amount)
}

func (d *demoAccounts) MintCallback(amount0, amount1 *big.Int, data []byte) error {
	tokens := data2tokens(data)
	if amount0.Sign() > 0 {
		d.credit(tokens[0], amount0)
	}
	if amount1.Sign() > 0 {
		d.credit(tokens[1], amount1)
	}
	return nil
}

func (d *demoAccounts) SwapCallback(amount0Delta, amount1Delta *big.Int, data []byte) error {
	tokens := data2tokens(data)
	if amount0Delta.Sign() > 0 {
		d.credit(tokens[0], amount0Delta)
	}
	if amount1Delta.Sign() > 0 {
		d.credit(tokens[1], amount1Delta)
	}
	return nil
}

func (d *demoAccounts) FlashCallback(fee0, fee1 *big.Int, data []byte) error {
	tokens := data2tokens(data)
	d.credit(tokens[0], fee0)
	d.credit(tokens[1], fee1)
	return nil
}

func data2tokens(data []byte) [2]common.Address {
	var tokens [2]common.Address
	if len(data) < 40 {
		return tokens
	}
	tokens[0] = common.BytesToAddress(data[:20])
	tokens[1] = common.BytesToAddress(data[20:40])
	return tokens
}

func main() {
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	rootLogger := slog.New(rootLogHandler)
	fail := func(msg string, args ...any) {
		rootLogger.Error(msg, args...)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fail("failed to load configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.DefaultRegisterer
	metrics := clmm.NewMetrics(registry, "poolctl")

	accounts := newDemoAccounts()
	pool, err := clmm.NewPool(
		cfg.Token0, cfg.Token1, cfg.Fee, cfg.TickSpacing, cfg.Owner, accounts,
		clmm.WithLogger(rootLogger.With("component", "pool")),
		clmm.WithMetrics(metrics),
	)
	if err != nil {
		fail("failed to construct pool", "error", err)
	}

	if err := initializeAtTick(pool, cfg.InitialTick); err != nil {
		fail("failed to initialize pool", "error", err)
	}

	callbackData := append(cfg.Token0.Bytes(), cfg.Token1.Bytes()...)

	if _, _, err := pool.Mint(cfg.Owner, cfg.MintLower, cfg.MintUpper, cfg.MintAmount, accounts, callbackData); err != nil {
		fail("demo mint failed", "error", err)
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	limit := swapLimit(cfg.ZeroForOne)
	amount0, amount1, err := pool.Swap(cfg.Owner, cfg.ZeroForOne, cfg.SwapAmount, limit, accounts, callbackData)
	if err != nil {
		fail("demo swap failed", "error", err)
	}

	printState(pool, amount0, amount1)
}

func initializeAtTick(pool *clmm.Pool, tick int64) error {
	sqrtPriceX96 := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(sqrtPriceX96, tick); err != nil {
		return err
	}
	return pool.Initialize(sqrtPriceX96)
}

func swapLimit(zeroForOne bool) *big.Int {
	if zeroForOne {
		return new(big.Int).Add(tickmath.MIN_SQRT_RATIO, big.NewInt(1))
	}
	return new(big.Int).Sub(tickmath.MAX_SQRT_RATIO, big.NewInt(1))
}

func printState(pool *clmm.Pool, swapAmount0, swapAmount1 *big.Int) {
	slot0 := pool.Slot0View()
	reserve0, reserve1 := pool.VirtualReserves()

	out := struct {
		Tick         int64  `json:"tick"`
		SqrtPriceX96 string `json:"sqrt_price_x96"`
		Liquidity    string `json:"liquidity"`
		Reserve0     string `json:"reserve0"`
		Reserve1     string `json:"reserve1"`
		SwapAmount0  string `json:"swap_amount0"`
		SwapAmount1  string `json:"swap_amount1"`
	}{
		Tick:         slot0.Tick,
		SqrtPriceX96: slot0.SqrtPriceX96.String(),
		Liquidity:    pool.LiquidityView().String(),
		Reserve0:     reserve0.String(),
		Reserve1:     reserve1.String(),
		SwapAmount0:  swapAmount0.String(),
		SwapAmount1:  swapAmount1.String(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
