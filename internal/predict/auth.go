package predict

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// Auth performs the venue's challenge/response login and caches the bearer
// token. The venue authenticates the smart-wallet account; the challenge is
// signed with the controlling EOA key. The token is refreshed under a mutex
// shortly before expiry or whenever the venue answers 401/403 — concurrent
// callers queue on the same refresh.
type Auth struct {
	http       *resty.Client
	privateKey *ecdsa.PrivateKey
	eoaAddress string
	account    string
	slack      time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewAuth creates the auth provider.
func NewAuth(baseURL, privateKeyHex, account string, slack time.Duration, logger *zap.Logger) (*Auth, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	eoa := crypto.PubkeyToAddress(key.PublicKey).Hex()
	if account == "" {
		account = eoa
	}

	return &Auth{
		http:       resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
		privateKey: key,
		eoaAddress: eoa,
		account:    account,
		slack:      slack,
		logger:     logger,
	}, nil
}

// Account returns the venue account address.
func (a *Auth) Account() string {
	return a.account
}

// BearerToken returns a valid token, refreshing when expired or within the
// pre-expiry slack.
func (a *Auth) BearerToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Until(a.expiresAt) > a.slack {
		return a.token, nil
	}

	return a.refreshLocked(ctx)
}

// Invalidate drops the cached token. The next caller reauthenticates.
func (a *Auth) Invalidate() {
	a.mu.Lock()
	a.token = ""
	a.expiresAt = time.Time{}
	a.mu.Unlock()
}

type authMessageResponse struct {
	Message string `json:"message"`
}

type authTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"` // seconds
}

func (a *Auth) refreshLocked(ctx context.Context) (string, error) {
	var msgResp authMessageResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"address": a.account}).
		SetResult(&msgResp).
		Post("/auth/message")
	if err != nil {
		return "", types.NewVenueError(types.CodeNetworkError, types.ClassTransient, "auth message: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", types.NewVenueError(types.CodeAuthExpired, types.ClassLocal,
			"auth message: status %d: %s", resp.StatusCode(), resp.String())
	}

	sig, err := a.signChallenge(msgResp.Message)
	if err != nil {
		return "", fmt.Errorf("sign challenge: %w", err)
	}

	var tokResp authTokenResponse
	resp, err = a.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"address":   a.account,
			"signer":    a.eoaAddress,
			"message":   msgResp.Message,
			"signature": sig,
		}).
		SetResult(&tokResp).
		Post("/auth")
	if err != nil {
		return "", types.NewVenueError(types.CodeNetworkError, types.ClassTransient, "auth: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", types.NewVenueError(types.CodeAuthExpired, types.ClassLocal,
			"auth: status %d: %s", resp.StatusCode(), resp.String())
	}

	if tokResp.ExpiresIn <= 0 {
		tokResp.ExpiresIn = 24 * 60 * 60
	}

	a.token = tokResp.Token
	a.expiresAt = time.Now().Add(time.Duration(tokResp.ExpiresIn) * time.Second)

	AuthRefreshesTotal.Inc()
	a.logger.Info("predict-auth-refreshed",
		zap.String("account", a.account),
		zap.Time("expires-at", a.expiresAt))

	return a.token, nil
}

// signChallenge signs the venue's login message with the EOA key using the
// personal-sign digest.
func (a *Auth) signChallenge(message string) (string, error) {
	digest := accounts.TextHash([]byte(message))
	sig, err := crypto.Sign(digest, a.privateKey)
	if err != nil {
		return "", err
	}
	// Ethereum convention: v in {27, 28}.
	sig[64] += 27
	return hexutil.Encode(sig), nil
}
