package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kapu/mines-leaderboard-go/internal/kvstore"
	"github.com/kapu/mines-leaderboard-go/internal/obslog"
	"github.com/kapu/mines-leaderboard-go/internal/reqid"
)

const (
	window     = time.Minute
	counterTTL = 2 * window // stragglers self-expire
)

// ClientInfo is the raw per-request material the scopes are derived from.
type ClientInfo struct {
	IP             string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
}

// Fingerprint derives the low-entropy client identifier used for
// rate-limiting granularity. Not an identity: two clients may collide.
func (c ClientInfo) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		c.IP, c.UserAgent, c.AcceptLanguage, c.AcceptEncoding,
	}, "|")))
	return hex.EncodeToString(sum[:8])
}

type Ceilings struct {
	IP          int
	Fingerprint int
	Global      int
}

func DefaultCeilings() Ceilings {
	return Ceilings{IP: 20, Fingerprint: 15, Global: 1000}
}

type Result struct {
	Allowed   bool
	Remaining int
	// Scope names the dimension that tripped, empty when allowed.
	Scope string
}

// Limiter enforces fixed one-minute windows across three independent
// scopes: client IP, client fingerprint, and a global ceiling.
type Limiter struct {
	store    *kvstore.Adapter
	ceilings Ceilings
	now      func() time.Time
	log      *zap.Logger
}

func New(store *kvstore.Adapter, ceilings Ceilings) *Limiter {
	if ceilings.IP <= 0 || ceilings.Fingerprint <= 0 || ceilings.Global <= 0 {
		ceilings = DefaultCeilings()
	}
	return &Limiter{store: store, ceilings: ceilings, now: time.Now, log: obslog.Named("ratelimit")}
}

type scope struct {
	name    string
	key     string
	ceiling int
}

func (l *Limiter) scopes(client ClientInfo, minute int64) []scope {
	return []scope{
		{"ip", fmt.Sprintf("ratelimit:ip:%s:%d", client.IP, minute), l.ceilings.IP},
		{"fingerprint", fmt.Sprintf("ratelimit:fp:%s:%d", client.Fingerprint(), minute), l.ceilings.Fingerprint},
		{"global", fmt.Sprintf("ratelimit:global:%d", minute), l.ceilings.Global},
	}
}

// Check reads all three scope counters concurrently. If any scope is at or
// above its ceiling, the request is rejected with Remaining 0 and no counter
// is incremented. Otherwise all counters are incremented concurrently and
// the fingerprint scope's leftover quota is reported for client backoff.
func (l *Limiter) Check(ctx context.Context, client ClientInfo) Result {
	minute := l.now().Unix() / 60
	scopes := l.scopes(client, minute)

	counts := make([]int64, len(scopes))
	var g errgroup.Group
	for i, sc := range scopes {
		i, sc := i, sc
		g.Go(func() error {
			counts[i] = l.store.CounterValue(ctx, sc.key)
			return nil
		})
	}
	_ = g.Wait()

	for i, sc := range scopes {
		if counts[i] >= int64(sc.ceiling) {
			l.log.Warn("rate limit exceeded",
				zap.String("scope", sc.name),
				zap.String("ip", client.IP),
				zap.Int64("count", counts[i]),
				zap.Int("ceiling", sc.ceiling),
				zap.String("cid", reqid.From(ctx)))
			return Result{Allowed: false, Remaining: 0, Scope: sc.name}
		}
	}

	// Increments are concurrent and unordered relative to each other; the
	// window race across scopes is accepted.
	var inc errgroup.Group
	for _, sc := range scopes {
		sc := sc
		inc.Go(func() error {
			l.store.Incr(ctx, sc.key, 1, counterTTL)
			return nil
		})
	}
	_ = inc.Wait()

	remaining := l.ceilings.Fingerprint - int(counts[1]) - 1
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining}
}
