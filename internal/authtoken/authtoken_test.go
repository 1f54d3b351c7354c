package authtoken

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kapu/mines-leaderboard-go/internal/cache"
	"github.com/kapu/mines-leaderboard-go/internal/kvstore"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 chars

func newTestAuth(t *testing.T, secret string) *Authenticator {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	local := cache.New()
	t.Cleanup(local.Stop)
	return New(kvstore.New(rdb, local, time.Minute), secret)
}

func TestIssueThenValidate(t *testing.T) {
	a := newTestAuth(t, testSecret)
	token, err := a.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := a.Validate(context.Background(), token); err != nil {
		t.Fatalf("validate fresh token: %v", err)
	}
}

func TestReplayRejected(t *testing.T) {
	a := newTestAuth(t, testSecret)
	token, _ := a.Issue()
	ctx := context.Background()

	if err := a.Validate(ctx, token); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if err := a.Validate(ctx, token); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("second use: want ErrAlreadyUsed, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	a := newTestAuth(t, testSecret)
	a.now = func() time.Time { return time.Now().Add(-6 * time.Minute) }
	token, _ := a.Issue()
	a.now = time.Now

	if err := a.Validate(context.Background(), token); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
}

func TestFutureTokenRejected(t *testing.T) {
	a := newTestAuth(t, testSecret)
	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	token, _ := a.Issue()
	a.now = time.Now

	if err := a.Validate(context.Background(), token); !errors.Is(err, ErrExpired) {
		t.Fatalf("clock-skewed future token must fail, got %v", err)
	}
}

func TestMalformedToken(t *testing.T) {
	a := newTestAuth(t, testSecret)
	ctx := context.Background()

	if err := a.Validate(ctx, "not-base64!!"); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("want ErrInvalidStructure, got %v", err)
	}
	onePart := base64.StdEncoding.EncodeToString([]byte("justonepart"))
	if err := a.Validate(ctx, onePart); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("want ErrInvalidStructure for missing separator, got %v", err)
	}
}

func TestNonNumericTimestamp(t *testing.T) {
	a := newTestAuth(t, testSecret)
	token := base64.StdEncoding.EncodeToString([]byte("soon:deadbeef"))
	if err := a.Validate(context.Background(), token); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired for non-numeric timestamp, got %v", err)
	}
}

func TestTamperedSignature(t *testing.T) {
	a := newTestAuth(t, testSecret)
	token, _ := a.Issue()
	raw, _ := base64.StdEncoding.DecodeString(token)
	parts := strings.SplitN(string(raw), ":", 2)
	forged := base64.StdEncoding.EncodeToString([]byte(parts[0] + ":" + strings.Repeat("ab", 32)))

	if err := a.Validate(context.Background(), forged); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("want ErrInvalidSignature, got %v", err)
	}
}

func TestShortSecretIsConfigError(t *testing.T) {
	a := newTestAuth(t, "short")
	if _, err := a.Issue(); !errors.Is(err, ErrSecretUnavailable) {
		t.Fatalf("issue with short secret: got %v", err)
	}
	if err := a.Validate(context.Background(), "anything"); !errors.Is(err, ErrSecretUnavailable) {
		t.Fatalf("validate with short secret: got %v", err)
	}
}
