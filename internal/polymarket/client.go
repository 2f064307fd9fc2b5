// Package polymarket implements the gateway to the hedge venue (Venue-B):
// a CLOB with EIP-712 signed orders, HMAC-authenticated REST and a public
// market-data websocket (consumed by pkg/websocket, not here).
package polymarket

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/cache"
)

// Client is the hedge venue REST client.
type Client struct {
	http          *resty.Client
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string // EOA (signer)
	proxyAddress  string // funder/maker when set
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	metaCache     cache.Cache
	logger        *zap.Logger
}

// ClientConfig holds hedge venue client configuration.
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	Secret        string
	Passphrase    string
	PrivateKey    string
	ProxyAddress  string
	SignatureType int
	ChainID       int64
	Cache         cache.Cache
	Logger        *zap.Logger
}

// NewClient creates a hedge venue client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = 137 // Polygon mainnet
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:          httpClient,
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(big.NewInt(chainID), nil),
		metaCache:     cfg.Cache,
		logger:        cfg.Logger,
	}, nil
}

// makerAddress is the funder the exchange debits: the proxy wallet when
// configured, the EOA otherwise.
func (c *Client) makerAddress() string {
	if c.proxyAddress != "" {
		return c.proxyAddress
	}
	return c.address
}

// l2Headers signs one authenticated request. The secret is URL-safe base64
// both ways, matching the venue's reference client.
func (c *Client) l2Headers(method, requestPath, body string) (map[string]string, error) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(timestamp + method + requestPath + body))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	return map[string]string{
		"POLY_API_KEY":    c.apiKey,
		"POLY_SIGNATURE":  signature,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_PASSPHRASE": c.passphrase,
		"POLY_ADDRESS":    c.address,
	}, nil
}
