package audit

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kapu/mines-leaderboard-go/internal/obslog"
	"github.com/kapu/mines-leaderboard-go/internal/reqid"
	"github.com/kapu/mines-leaderboard-go/pkg/boarddto"
)

// Repository archives accepted scores and security events to Postgres. It is
// optional infrastructure: a nil *Repository is valid and every method is a
// no-op on it, so the service runs without DATABASE_URL configured. Insert
// failures are logged, never surfaced.
type Repository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db, log: obslog.Named("audit")}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// RecordScore archives one accepted leaderboard write.
func (r *Repository) RecordScore(ctx context.Context, difficulty boarddto.Difficulty, rec boarddto.ScoreRecord) {
	if r == nil || r.db == nil {
		return
	}
	const q = `INSERT INTO board_scores (
			game_id, difficulty, username, time_seconds, moves, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q,
		rec.GameID, string(difficulty), rec.Username, rec.Time, rec.Moves, rec.Timestamp)
	if err != nil {
		r.log.Warn("score audit insert failed",
			zap.String("gameId", rec.GameID), zap.String("cid", reqid.From(ctx)), zap.Error(err))
	}
}

// RecordSecurityEvent archives a policy rejection (rate limit, auth failure,
// behavioral block) for offline triage.
func (r *Repository) RecordSecurityEvent(ctx context.Context, kind, detail string) {
	if r == nil || r.db == nil {
		return
	}
	const q = `INSERT INTO security_events (kind, detail, request_id, created_at)
		VALUES ($1, $2, $3, NOW())`
	_, err := r.db.ExecContext(ctx, q, kind, detail, reqid.From(ctx))
	if err != nil {
		r.log.Warn("security event insert failed",
			zap.String("kind", kind), zap.String("cid", reqid.From(ctx)), zap.Error(err))
	}
}
