package predict

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const testPrivateKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

func newAuthServer(t *testing.T, authCalls *atomic.Int64, expiresIn int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/message", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "login to predict: nonce-42"})
	})
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode auth body: %v", err)
		}
		if body["signature"] == "" || body["address"] == "" {
			t.Error("auth request missing signature or address")
		}
		authCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"token": "tok-1", "expiresIn": expiresIn})
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBearerTokenCachesUntilExpiry(t *testing.T) {
	var calls atomic.Int64
	srv := newAuthServer(t, &calls, 3600)

	auth, err := NewAuth(srv.URL, testPrivateKey, "0xabc0000000000000000000000000000000000001", 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	tok, err := auth.BearerToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "tok-1" {
		t.Fatalf("token = %q", tok)
	}

	// Second call must be served from cache.
	if _, err := auth.BearerToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Fatalf("auth calls = %d, want 1", calls.Load())
	}
}

func TestBearerTokenRefreshesWithinSlack(t *testing.T) {
	var calls atomic.Int64
	// Expires in 2s, slack 5s: every call is inside the refresh window.
	srv := newAuthServer(t, &calls, 2)

	auth, err := NewAuth(srv.URL, testPrivateKey, "", 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := auth.BearerToken(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 3 {
		t.Fatalf("auth calls = %d, want 3", calls.Load())
	}
}

func TestInvalidateForcesReauth(t *testing.T) {
	var calls atomic.Int64
	srv := newAuthServer(t, &calls, 3600)

	auth, err := NewAuth(srv.URL, testPrivateKey, "", 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := auth.BearerToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	auth.Invalidate()
	if _, err := auth.BearerToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("auth calls = %d, want 2", calls.Load())
	}
}

func TestAccountDefaultsToEOA(t *testing.T) {
	auth, err := NewAuth("http://localhost", testPrivateKey, "", time.Second, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if auth.Account() == "" {
		t.Fatal("account should default to the EOA address")
	}
}
