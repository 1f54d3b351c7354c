package validate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/mines-leaderboard-go/internal/obslog"
	"github.com/kapu/mines-leaderboard-go/internal/reqid"
	"github.com/kapu/mines-leaderboard-go/internal/taskpool"
	"github.com/kapu/mines-leaderboard-go/pkg/boarddto"
)

// Validator runs the plausibility pipeline over a submission claim. The
// checks are state-free and independent, so they are dispatched through the
// shared task limiter and joined; the verdict is then taken in the fixed
// check order, first failure winning.
type Validator struct {
	pool *taskpool.Limiter
	now  func() time.Time
	log  *zap.Logger
}

func New(pool *taskpool.Limiter) *Validator {
	return &Validator{pool: pool, now: time.Now, log: obslog.Named("validate")}
}

func (v *Validator) Validate(ctx context.Context, claim boarddto.SubmitScoreRequest) CheckResult {
	now := v.now()
	checks := []func(boarddto.SubmitScoreRequest) CheckResult{
		checkStructural,
		func(c boarddto.SubmitScoreRequest) CheckResult { return checkTemporal(c, now) },
		checkBoard,
		checkMoves,
		checkMagnitude,
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, fn := range checks {
		if err := v.pool.Acquire(ctx); err != nil {
			// Dispatch interrupted; run the remaining checks inline.
			results[i] = fn(claim)
			continue
		}
		i, fn := i, fn
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer v.pool.Release()
			results[i] = fn(claim)
		}()
	}
	wg.Wait()

	for _, r := range results {
		if !r.Valid {
			v.log.Info("claim rejected",
				zap.String("reason", r.Reason),
				zap.String("severity", string(r.Severity)),
				zap.String("user", claim.Username),
				zap.String("difficulty", string(claim.Difficulty)),
				zap.String("cid", reqid.From(ctx)))
			return r
		}
	}
	return pass()
}
