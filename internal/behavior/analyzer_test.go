package behavior

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kapu/mines-leaderboard-go/internal/cache"
	"github.com/kapu/mines-leaderboard-go/internal/kvstore"
	"github.com/kapu/mines-leaderboard-go/pkg/boarddto"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	local := cache.New()
	t.Cleanup(local.Stop)
	return New(kvstore.New(rdb, local, time.Minute), 5*time.Minute, 3, false)
}

func TestFirstSubmissionUpdatesStats(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	v := a.Analyze(ctx, "u1", boarddto.DifficultyBeginner, 45)
	if v.Blocked {
		t.Fatalf("first submission must not block")
	}
	st := a.Snapshot(ctx, "u1", boarddto.DifficultyBeginner)
	if st.Submissions != 1 || st.BestTime != 45 || st.AverageTime != 45 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestRapidSubmissionsEventuallyBlock(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	base := time.Now()
	step := 0
	a.now = func() time.Time { return base.Add(time.Duration(step) * time.Second) }

	// Submissions a second apart: the first passes, then the suspicion
	// counter climbs until it exceeds the threshold.
	var blocked bool
	for i := 0; i < 6; i++ {
		step = i
		if v := a.Analyze(ctx, "u1", boarddto.DifficultyExpert, 120); v.Blocked {
			blocked = true
			break
		}
	}
	if !blocked {
		t.Fatalf("rapid-fire submissions never blocked")
	}
	st := a.Snapshot(ctx, "u1", boarddto.DifficultyExpert)
	if st.SuspiciousCount <= 3 {
		t.Fatalf("expected suspicion above threshold, got %d", st.SuspiciousCount)
	}
}

func TestBlockDoesNotTouchBestTime(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	base := time.Now()
	step := 0
	a.now = func() time.Time { return base.Add(time.Duration(step) * time.Second) }

	for i := 0; i < 6; i++ {
		step = i
		if v := a.Analyze(ctx, "u1", boarddto.DifficultyExpert, 200-i*20); v.Blocked {
			st := a.Snapshot(ctx, "u1", boarddto.DifficultyExpert)
			if st.BestTime == 200-i*20 {
				t.Fatalf("blocked submission must not update best time")
			}
			return
		}
	}
	t.Fatalf("expected a block")
}

func TestCooldownDecaysSuspicion(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	base := time.Now()
	now := base
	a.now = func() time.Time { return now }

	a.Analyze(ctx, "u1", boarddto.DifficultyBeginner, 45)
	now = base.Add(time.Second)
	a.Analyze(ctx, "u1", boarddto.DifficultyBeginner, 44) // suspicious
	st := a.Snapshot(ctx, "u1", boarddto.DifficultyBeginner)
	if st.SuspiciousCount != 1 {
		t.Fatalf("expected suspicion 1, got %d", st.SuspiciousCount)
	}

	now = base.Add(10 * time.Minute)
	a.Analyze(ctx, "u1", boarddto.DifficultyBeginner, 43)
	st = a.Snapshot(ctx, "u1", boarddto.DifficultyBeginner)
	if st.SuspiciousCount != 0 {
		t.Fatalf("expected suspicion to decay to 0, got %d", st.SuspiciousCount)
	}
}

func TestRunningAverage(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	base := time.Now()
	now := base
	a.now = func() time.Time { return now }

	for i, solve := range []int{60, 40, 50} {
		now = base.Add(time.Duration(i) * 10 * time.Minute)
		a.Analyze(ctx, "u1", boarddto.DifficultyIntermediate, solve)
	}
	st := a.Snapshot(ctx, "u1", boarddto.DifficultyIntermediate)
	if st.Submissions != 3 || st.BestTime != 40 || st.AverageTime != 50 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestSuddenImprovementFlagOffByDefault(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	base := time.Now()
	now := base
	a.now = func() time.Time { return now }

	a.Analyze(ctx, "u1", boarddto.DifficultyExpert, 500)
	now = base.Add(10 * time.Minute)
	a.Analyze(ctx, "u1", boarddto.DifficultyExpert, 40) // huge jump
	st := a.Snapshot(ctx, "u1", boarddto.DifficultyExpert)
	if st.SuspiciousCount != 0 {
		t.Fatalf("disabled heuristic must not add suspicion, got %d", st.SuspiciousCount)
	}
	if st.BestTime != 40 {
		t.Fatalf("improvement must still land, got best %d", st.BestTime)
	}
}
