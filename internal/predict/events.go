package predict

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// orderFilledSig is the venue's settlement event. orderHash, maker and
// taker are indexed; the amounts live in the data segment.
const orderFilledSig = "OrderFilled(bytes32,address,address,uint256,uint256,uint256,uint256,uint256)"

var orderFilledTopic = crypto.Keccak256Hash([]byte(orderFilledSig))

var orderFilledArgs = abi.Arguments{
	{Name: "makerAssetId", Type: mustNewType("uint256")},
	{Name: "takerAssetId", Type: mustNewType("uint256")},
	{Name: "makerAmountFilled", Type: mustNewType("uint256")},
	{Name: "takerAmountFilled", Type: mustNewType("uint256")},
	{Name: "fee", Type: mustNewType("uint256")},
}

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// FillStream subscribes to OrderFilled logs on the venue's exchange
// contracts and emits decoded fills for the configured account. The
// subscription reconnects with exponential backoff; block timestamps are
// resolved from headers since the log feed does not carry them.
type FillStream struct {
	rpcURL    string
	exchanges []common.Address
	account   common.Address
	logger    *zap.Logger

	events chan types.FillEvent

	headerMu    chan struct{} // binary semaphore around headerCache
	headerCache map[common.Hash]time.Time
}

// FillStreamConfig holds fill stream configuration.
type FillStreamConfig struct {
	RPCURL            string
	ExchangeAddresses []string
	Account           string
	Logger            *zap.Logger
}

// NewFillStream creates a fill stream.
func NewFillStream(cfg *FillStreamConfig) *FillStream {
	addrs := make([]common.Address, 0, len(cfg.ExchangeAddresses))
	for _, a := range cfg.ExchangeAddresses {
		addrs = append(addrs, common.HexToAddress(a))
	}

	fs := &FillStream{
		rpcURL:      cfg.RPCURL,
		exchanges:   addrs,
		account:     common.HexToAddress(cfg.Account),
		logger:      cfg.Logger,
		events:      make(chan types.FillEvent, 256),
		headerMu:    make(chan struct{}, 1),
		headerCache: make(map[common.Hash]time.Time),
	}
	fs.headerMu <- struct{}{}
	return fs
}

// Events returns the decoded fill stream.
func (fs *FillStream) Events() <-chan types.FillEvent {
	return fs.events
}

// Run connects and consumes logs until the context is cancelled.
func (fs *FillStream) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fs.consume(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		fs.logger.Warn("fill-stream-disconnected",
			zap.Error(err),
			zap.Duration("backoff", backoff))
		EventStreamReconnectsTotal.Inc()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (fs *FillStream) consume(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, fs.rpcURL)
	if err != nil {
		return err
	}
	defer client.Close()

	query := ethereum.FilterQuery{
		Addresses: fs.exchanges,
		Topics:    [][]common.Hash{{orderFilledTopic}},
	}

	logs := make(chan ethtypes.Log, 256)
	sub, err := client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	fs.logger.Info("fill-stream-connected", zap.Int("exchanges", len(fs.exchanges)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case lg := <-logs:
			ev, ok := fs.decode(ctx, client, &lg)
			if !ok {
				continue
			}

			FillEventsTotal.Inc()
			select {
			case fs.events <- *ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (fs *FillStream) decode(ctx context.Context, client *ethclient.Client, lg *ethtypes.Log) (*types.FillEvent, bool) {
	if len(lg.Topics) < 4 {
		return nil, false
	}

	maker := common.BytesToAddress(lg.Topics[2].Bytes())
	taker := common.BytesToAddress(lg.Topics[3].Bytes())

	// Only fills touching our account matter.
	if maker != fs.account && taker != fs.account {
		return nil, false
	}

	vals, err := orderFilledArgs.Unpack(lg.Data)
	if err != nil {
		fs.logger.Warn("fill-event-decode-failed",
			zap.Error(err),
			zap.String("tx", lg.TxHash.Hex()))
		return nil, false
	}

	makerAssetID := vals[0].(*big.Int)
	takerAssetID := vals[1].(*big.Int)
	makerAmount := weiToShares(vals[2].(*big.Int))
	takerAmount := weiToShares(vals[3].(*big.Int))
	fee := weiToShares(vals[4].(*big.Int))

	return &types.FillEvent{
		OrderHash:    lg.Topics[1].Hex(),
		Maker:        strings.ToLower(maker.Hex()),
		Taker:        strings.ToLower(taker.Hex()),
		MakerAssetID: makerAssetID.String(),
		TakerAssetID: takerAssetID.String(),
		MakerAmount:  makerAmount,
		TakerAmount:  takerAmount,
		Fee:          fee,
		BlockNumber:  lg.BlockNumber,
		TxHash:       lg.TxHash.Hex(),
		LogIndex:     lg.Index,
		Timestamp:    fs.blockTime(ctx, client, lg.BlockHash),
	}, true
}

// blockTime resolves the block timestamp via the header, falling back to
// local receipt time when the header cannot be fetched.
func (fs *FillStream) blockTime(ctx context.Context, client *ethclient.Client, hash common.Hash) time.Time {
	<-fs.headerMu
	cached, ok := fs.headerCache[hash]
	fs.headerMu <- struct{}{}
	if ok {
		return cached
	}

	hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	header, err := client.HeaderByHash(hctx, hash)
	if err != nil {
		return time.Now()
	}
	ts := time.Unix(int64(header.Time), 0)

	<-fs.headerMu
	if len(fs.headerCache) > 1024 {
		fs.headerCache = make(map[common.Hash]time.Time)
	}
	fs.headerCache[hash] = ts
	fs.headerMu <- struct{}{}

	return ts
}

func weiToShares(v *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(1e18)).Float64()
	return f
}
