package leaderboard

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/mines-leaderboard-go/internal/kvstore"
	"github.com/kapu/mines-leaderboard-go/internal/obslog"
	"github.com/kapu/mines-leaderboard-go/internal/reqid"
	"github.com/kapu/mines-leaderboard-go/pkg/boarddto"
)

// Store owns the authoritative bounded top-N list per difficulty tier.
// Writes happen only after every upstream gate has passed. The tier
// read-modify-write is not transactional against the durable store; two
// concurrent accepts race last-writer-wins over a single bounded list.
type Store struct {
	kv   *kvstore.Adapter
	size int
	now  func() time.Time
	log  *zap.Logger
}

func New(kv *kvstore.Adapter, size int) *Store {
	if size <= 0 {
		size = 20
	}
	return &Store{kv: kv, size: size, now: time.Now, log: obslog.Named("leaderboard")}
}

func tierKey(d boarddto.Difficulty) string { return "leaderboard:" + string(d) }

// Get returns the tier, empty on absence or store failure (degraded read).
func (s *Store) Get(ctx context.Context, d boarddto.Difficulty) []boarddto.ScoreRecord {
	var board []boarddto.ScoreRecord
	s.kv.GetJSON(ctx, tierKey(d), &board)
	return board
}

// SubmitOutcome reports the accept-path result. Accepted=false is a policy
// rejection (duplicate game), not a transport failure.
type SubmitOutcome struct {
	Accepted bool
	Improved bool
	Rank     int // 1-based position, 0 when off the board
	Board    []boarddto.ScoreRecord
	Reason   string
}

// Submit applies one fully validated claim to its tier: duplicate gameIds
// are rejected, an existing record is replaced only by a strictly better
// time, the tier is re-sorted ascending and truncated to the top N, and the
// cached copy for the tier's logical key is refreshed synchronously.
func (s *Store) Submit(ctx context.Context, claim boarddto.SubmitScoreRequest) SubmitOutcome {
	key := tierKey(claim.Difficulty)
	board := s.Get(ctx, claim.Difficulty)

	for _, rec := range board {
		if rec.GameID == claim.GameID {
			return SubmitOutcome{Reason: boarddto.CodeDuplicateSubmission, Board: board}
		}
	}

	newRec := boarddto.ScoreRecord{
		Username:  claim.Username,
		Time:      claim.Time,
		Timestamp: s.now().UTC(),
		GameID:    claim.GameID,
		Moves:     claim.Moves,
		Verified:  true,
	}

	replaced := false
	for i, rec := range board {
		if rec.Username == claim.Username {
			if claim.Time >= rec.Time {
				// Ties and regressions keep the stored best; not an error.
				return SubmitOutcome{
					Accepted: true,
					Improved: false,
					Rank:     rankOf(board, claim.Username),
					Board:    board,
				}
			}
			board[i] = newRec
			replaced = true
			break
		}
	}
	if !replaced {
		board = append(board, newRec)
	}

	sort.SliceStable(board, func(i, j int) bool { return board[i].Time < board[j].Time })
	if len(board) > s.size {
		board = board[:s.size]
	}

	if !s.kv.PutJSON(ctx, key, board, 0) {
		// The write-through failed; drop the now-stale cached copy so later
		// reads fall back to the durable store.
		s.kv.Invalidate(key)
		s.log.Error("tier persist failed",
			zap.String("difficulty", string(claim.Difficulty)),
			zap.String("cid", reqid.From(ctx)))
	}

	return SubmitOutcome{
		Accepted: true,
		Improved: true,
		Rank:     rankOf(board, claim.Username),
		Board:    board,
	}
}

// Reset wipes a tier. Administrative path only.
func (s *Store) Reset(ctx context.Context, d boarddto.Difficulty) {
	s.kv.Delete(ctx, tierKey(d))
}

// Sizes reports per-tier entry counts for the admin surface.
func (s *Store) Sizes(ctx context.Context) map[boarddto.Difficulty]int {
	out := make(map[boarddto.Difficulty]int, 3)
	for _, d := range boarddto.Difficulties() {
		out[d] = len(s.Get(ctx, d))
	}
	return out
}

func rankOf(board []boarddto.ScoreRecord, username string) int {
	for i, rec := range board {
		if rec.Username == username {
			return i + 1
		}
	}
	return 0
}
