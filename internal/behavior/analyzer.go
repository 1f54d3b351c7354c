package behavior

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/mines-leaderboard-go/internal/kvstore"
	"github.com/kapu/mines-leaderboard-go/internal/obslog"
	"github.com/kapu/mines-leaderboard-go/internal/reqid"
	"github.com/kapu/mines-leaderboard-go/pkg/boarddto"
)

const statsTTL = 7 * 24 * time.Hour

// Stats is the rolling per-(user,difficulty) submission history. It records
// attempted legitimate submissions, not just ones that reached the board.
type Stats struct {
	Submissions     int     `json:"submissions"`
	BestTime        int     `json:"bestTime"`
	AverageTime     float64 `json:"averageTime"`
	TotalTime       int64   `json:"totalTime"`
	LastSubmission  int64   `json:"lastSubmission"` // unix millis
	SuspiciousCount int     `json:"suspiciousCount"`
}

type Verdict struct {
	Blocked bool
	Reason  string
}

// Analyzer tracks submission cadence per user and tier, flagging abusive
// patterns that single-submission validation cannot see.
type Analyzer struct {
	store          *kvstore.Adapter
	cooldown       time.Duration
	blockThreshold int
	// flagSuddenImprovement gates a heuristic that is off by default: large
	// one-shot improvements are legitimate often enough that blocking on
	// them is policy-disabled.
	flagSuddenImprovement bool
	now                   func() time.Time
	log                   *zap.Logger
}

func New(store *kvstore.Adapter, cooldown time.Duration, blockThreshold int, flagSuddenImprovement bool) *Analyzer {
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	if blockThreshold <= 0 {
		blockThreshold = 3
	}
	return &Analyzer{
		store:                 store,
		cooldown:              cooldown,
		blockThreshold:        blockThreshold,
		flagSuddenImprovement: flagSuddenImprovement,
		now:                   time.Now,
		log:                   obslog.Named("behavior"),
	}
}

func statsKey(username string, difficulty boarddto.Difficulty) string {
	return fmt.Sprintf("behavior:%s:%s", username, difficulty)
}

// Analyze updates the rolling stats for one validated claim and decides
// whether the user is temporarily blocked. On a block the claim must not
// reach the leaderboard and the stats keep their previous best time.
func (a *Analyzer) Analyze(ctx context.Context, username string, difficulty boarddto.Difficulty, claimedTime int) Verdict {
	key := statsKey(username, difficulty)
	var stats Stats
	a.store.GetJSON(ctx, key, &stats)

	now := a.now()
	if stats.LastSubmission > 0 {
		since := now.Sub(time.UnixMilli(stats.LastSubmission))
		if since < a.cooldown {
			stats.SuspiciousCount++
			if stats.SuspiciousCount > a.blockThreshold {
				a.log.Warn("user temporarily blocked",
					zap.String("user", username),
					zap.String("difficulty", string(difficulty)),
					zap.Int("suspiciousCount", stats.SuspiciousCount),
					zap.String("cid", reqid.From(ctx)))
				a.store.PutJSON(ctx, key, stats, statsTTL)
				return Verdict{Blocked: true, Reason: boarddto.CodeTemporarilyBlocked}
			}
		} else if stats.SuspiciousCount > 0 {
			stats.SuspiciousCount--
		}
	}

	if a.flagSuddenImprovement && stats.BestTime > 0 && claimedTime*2 < stats.BestTime {
		a.log.Warn("sudden improvement flagged",
			zap.String("user", username),
			zap.String("difficulty", string(difficulty)),
			zap.Int("previousBest", stats.BestTime),
			zap.Int("claimed", claimedTime),
			zap.String("cid", reqid.From(ctx)))
		stats.SuspiciousCount++
	}

	stats.Submissions++
	stats.TotalTime += int64(claimedTime)
	stats.AverageTime = float64(stats.TotalTime) / float64(stats.Submissions)
	if stats.BestTime == 0 || claimedTime < stats.BestTime {
		stats.BestTime = claimedTime
	}
	stats.LastSubmission = now.UnixMilli()

	a.store.PutJSON(ctx, key, stats, statsTTL)
	return Verdict{}
}

// Snapshot returns the current stats without mutating them.
func (a *Analyzer) Snapshot(ctx context.Context, username string, difficulty boarddto.Difficulty) Stats {
	var stats Stats
	a.store.GetJSON(ctx, statsKey(username, difficulty), &stats)
	return stats
}
