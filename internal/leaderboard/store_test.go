package leaderboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kapu/mines-leaderboard-go/internal/cache"
	"github.com/kapu/mines-leaderboard-go/internal/kvstore"
	"github.com/kapu/mines-leaderboard-go/pkg/boarddto"
)

func newTestStore(t *testing.T, size int) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	local := cache.New()
	t.Cleanup(local.Stop)
	return New(kvstore.New(rdb, local, time.Minute), size)
}

func claim(user, gameID string, solve int) boarddto.SubmitScoreRequest {
	return boarddto.SubmitScoreRequest{
		Username:   user,
		Difficulty: boarddto.DifficultyBeginner,
		Time:       solve,
		Moves:      20,
		GameID:     gameID,
	}
}

func TestFirstSubmissionAppends(t *testing.T) {
	s := newTestStore(t, 20)
	ctx := context.Background()

	out := s.Submit(ctx, claim("alice", "g1", 45))
	if !out.Accepted || !out.Improved || out.Rank != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(s.Get(ctx, boarddto.DifficultyBeginner)) != 1 {
		t.Fatalf("expected one stored record")
	}
}

func TestDuplicateGameIDRejected(t *testing.T) {
	s := newTestStore(t, 20)
	ctx := context.Background()

	s.Submit(ctx, claim("alice", "g1", 45))
	out := s.Submit(ctx, claim("alice", "g1", 30)) // better time, same game
	if out.Accepted {
		t.Fatalf("duplicate gameId must be rejected even when faster")
	}
	if out.Reason != boarddto.CodeDuplicateSubmission {
		t.Fatalf("want DUPLICATE_SUBMISSION, got %q", out.Reason)
	}
}

func TestStrictImprovementReplaces(t *testing.T) {
	s := newTestStore(t, 20)
	ctx := context.Background()

	s.Submit(ctx, claim("alice", "g1", 45))
	out := s.Submit(ctx, claim("alice", "g2", 30))
	if !out.Accepted || !out.Improved {
		t.Fatalf("strictly better time must replace: %+v", out)
	}
	board := s.Get(ctx, boarddto.DifficultyBeginner)
	if len(board) != 1 || board[0].Time != 30 || board[0].GameID != "g2" {
		t.Fatalf("unexpected board: %+v", board)
	}
}

func TestTieAndRegressionKeepRecord(t *testing.T) {
	s := newTestStore(t, 20)
	ctx := context.Background()

	s.Submit(ctx, claim("alice", "g1", 45))
	for _, solve := range []int{45, 60} {
		out := s.Submit(ctx, claim("alice", fmt.Sprintf("g-%d", solve), solve))
		if !out.Accepted {
			t.Fatalf("tie/regression is success, not failure: %+v", out)
		}
		if out.Improved {
			t.Fatalf("time %d must not improve on 45", solve)
		}
	}
	board := s.Get(ctx, boarddto.DifficultyBeginner)
	if len(board) != 1 || board[0].GameID != "g1" {
		t.Fatalf("stored record changed: %+v", board)
	}
}

func TestBoardSortedAndTruncated(t *testing.T) {
	s := newTestStore(t, 5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		user := fmt.Sprintf("user%d", i)
		s.Submit(ctx, claim(user, fmt.Sprintf("g%d", i), 100-i*10))
	}
	board := s.Get(ctx, boarddto.DifficultyBeginner)
	if len(board) != 5 {
		t.Fatalf("expected truncation to 5, got %d", len(board))
	}
	for i := 1; i < len(board); i++ {
		if board[i-1].Time > board[i].Time {
			t.Fatalf("board not ascending at %d: %+v", i, board)
		}
	}
	if board[0].Time != 30 {
		t.Fatalf("best time should lead, got %d", board[0].Time)
	}
}

func TestRankReflectsPositionAfterSort(t *testing.T) {
	s := newTestStore(t, 20)
	ctx := context.Background()

	s.Submit(ctx, claim("fast", "g1", 20))
	s.Submit(ctx, claim("slow", "g2", 90))
	out := s.Submit(ctx, claim("mid", "g3", 50))
	if out.Rank != 2 {
		t.Fatalf("expected rank 2, got %d", out.Rank)
	}
}

func TestTiersAreIndependent(t *testing.T) {
	s := newTestStore(t, 20)
	ctx := context.Background()

	c := claim("alice", "g1", 45)
	s.Submit(ctx, c)
	c2 := c
	c2.Difficulty = boarddto.DifficultyExpert
	c2.GameID = "g1" // same id is fine across tiers
	c2.Time = 120
	out := s.Submit(ctx, c2)
	if !out.Accepted {
		t.Fatalf("gameId uniqueness is scoped per tier: %+v", out)
	}
}

func TestResetClearsTier(t *testing.T) {
	s := newTestStore(t, 20)
	ctx := context.Background()

	s.Submit(ctx, claim("alice", "g1", 45))
	s.Reset(ctx, boarddto.DifficultyBeginner)
	if got := s.Get(ctx, boarddto.DifficultyBeginner); len(got) != 0 {
		t.Fatalf("expected empty tier after reset, got %+v", got)
	}
}

func TestDegradedReadReturnsEmpty(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	local := cache.New()
	t.Cleanup(local.Stop)
	s := New(kvstore.New(rdb, local, time.Minute), 20)

	mr.Close()
	if got := s.Get(context.Background(), boarddto.DifficultyBeginner); len(got) != 0 {
		t.Fatalf("expected degraded empty read, got %+v", got)
	}
}
