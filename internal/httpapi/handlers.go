package httpapi

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/mines-leaderboard-go/internal/authtoken"
	"github.com/kapu/mines-leaderboard-go/internal/ratelimit"
	"github.com/kapu/mines-leaderboard-go/internal/reqid"
	"github.com/kapu/mines-leaderboard-go/pkg/boarddto"
)

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/api/health":
		if method != fasthttp.MethodGet {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, boarddto.CodeMethodNotAllowed, "method not allowed")
			return
		}
		s.writeSuccess(ctx, map[string]string{"status": "ok"}, nil)

	case path == "/api/scores":
		if method != fasthttp.MethodPost {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, boarddto.CodeMethodNotAllowed, "method not allowed")
			return
		}
		s.handleSubmit(ctx)

	case strings.HasPrefix(path, "/api/leaderboard/"):
		if method != fasthttp.MethodGet {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, boarddto.CodeMethodNotAllowed, "method not allowed")
			return
		}
		s.handleGetLeaderboard(ctx, strings.TrimPrefix(path, "/api/leaderboard/"))

	case path == "/api/admin/stats":
		if method != fasthttp.MethodGet {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, boarddto.CodeMethodNotAllowed, "method not allowed")
			return
		}
		s.requireAdmin(ctx, s.handleAdminStats)

	case strings.HasPrefix(path, "/api/admin/leaderboard/") && strings.HasSuffix(path, "/reset"):
		if method != fasthttp.MethodPost {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, boarddto.CodeMethodNotAllowed, "method not allowed")
			return
		}
		tier := strings.TrimSuffix(strings.TrimPrefix(path, "/api/admin/leaderboard/"), "/reset")
		s.requireAdmin(ctx, func(c *fasthttp.RequestCtx) { s.handleAdminReset(c, tier) })

	default:
		s.writeError(ctx, fasthttp.StatusNotFound, boarddto.CodeNotFound, "no such route")
	}
}

// handleSubmit runs the full trust pipeline: rate limiter, plausibility
// validator, behavior analyzer, then the tier read-modify-write.
func (s *Server) handleSubmit(ctx *fasthttp.RequestCtx) {
	rctx := reqid.With(ctx, requestID(ctx))

	var claim boarddto.SubmitScoreRequest
	if err := json.Unmarshal(ctx.PostBody(), &claim); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, boarddto.CodeValidationFailed, "malformed request body")
		return
	}
	claim.Username = strings.TrimSpace(claim.Username)

	client := ratelimit.ClientInfo{
		IP:             clientIP(ctx),
		UserAgent:      string(ctx.Request.Header.Peek("User-Agent")),
		AcceptLanguage: string(ctx.Request.Header.Peek("Accept-Language")),
		AcceptEncoding: string(ctx.Request.Header.Peek("Accept-Encoding")),
	}
	rl := s.limiter.Check(rctx, client)
	if !rl.Allowed {
		s.audit.RecordSecurityEvent(rctx, "rate_limit", "scope="+rl.Scope+" ip="+client.IP)
		ctx.Response.Header.Set("X-RateLimit-Remaining", "0")
		s.writeError(ctx, fasthttp.StatusTooManyRequests, boarddto.CodeRateLimited, "too many requests, slow down")
		return
	}

	if res := s.validator.Validate(rctx, claim); !res.Valid {
		s.writeJSON(ctx, fasthttp.StatusBadRequest, boarddto.Envelope{
			Success: false,
			Meta:    map[string]any{"severity": res.Severity, requestIDKey: requestID(ctx)},
			Error: &boarddto.ErrorBody{
				Code:      res.Reason,
				Message:   res.Message,
				Timestamp: nowRFC3339(),
				RequestID: requestID(ctx),
			},
		})
		return
	}

	if verdict := s.analyzer.Analyze(rctx, claim.Username, claim.Difficulty, claim.Time); verdict.Blocked {
		s.audit.RecordSecurityEvent(rctx, "behavior_block", "user="+claim.Username)
		s.writeError(ctx, fasthttp.StatusTooManyRequests, boarddto.CodeTemporarilyBlocked,
			"submissions temporarily blocked, try again later")
		return
	}

	outcome := s.board.Submit(rctx, claim)
	if !outcome.Accepted {
		s.writeError(ctx, fasthttp.StatusBadRequest, outcome.Reason, "this game was already submitted")
		return
	}

	if outcome.Improved {
		s.audit.RecordScore(rctx, claim.Difficulty, boarddto.ScoreRecord{
			Username:  claim.Username,
			Time:      claim.Time,
			Timestamp: time.Now().UTC(),
			GameID:    claim.GameID,
			Moves:     claim.Moves,
			Verified:  true,
		})
	}

	s.writeSuccess(ctx, boarddto.SubmitResult{
		Improved:    outcome.Improved,
		Rank:        outcome.Rank,
		Leaderboard: outcome.Board,
	}, map[string]any{
		"remaining": rl.Remaining,
		"improved":  outcome.Improved,
		"rank":      outcome.Rank,
	})
}

func (s *Server) handleGetLeaderboard(ctx *fasthttp.RequestCtx, tier string) {
	d := boarddto.Difficulty(tier)
	if !d.Valid() {
		s.writeError(ctx, fasthttp.StatusNotFound, boarddto.CodeNotFound, "unknown difficulty")
		return
	}
	rctx := reqid.With(ctx, requestID(ctx))
	board := s.board.Get(rctx, d)
	if board == nil {
		board = []boarddto.ScoreRecord{}
	}
	s.writeSuccess(ctx, board, map[string]any{"difficulty": d, "count": len(board)})
}

// requireAdmin validates the bearer token before any business logic runs.
// A missing secret is a server fault, never an authentication failure.
func (s *Server) requireAdmin(ctx *fasthttp.RequestCtx, next fasthttp.RequestHandler) {
	header := string(ctx.Request.Header.Peek("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		s.writeError(ctx, fasthttp.StatusUnauthorized, boarddto.CodeUnauthorized, "missing bearer token")
		return
	}

	rctx := reqid.With(ctx, requestID(ctx))
	if err := s.auth.Validate(rctx, strings.TrimSpace(token)); err != nil {
		if errors.Is(err, authtoken.ErrSecretUnavailable) {
			s.log.Error("admin secret unavailable", zap.String("cid", requestID(ctx)))
			s.writeError(ctx, fasthttp.StatusInternalServerError, boarddto.CodeInternalError, "internal error")
			return
		}
		s.audit.RecordSecurityEvent(rctx, "auth_failure", err.Error())
		s.writeError(ctx, fasthttp.StatusUnauthorized, err.Error(), "invalid admin token")
		return
	}
	next(ctx)
}

func (s *Server) handleAdminStats(ctx *fasthttp.RequestCtx) {
	rctx := reqid.With(ctx, requestID(ctx))
	s.writeSuccess(ctx, map[string]any{
		"cache": s.kv.CacheStats(),
		"tiers": s.board.Sizes(rctx),
	}, nil)
}

func (s *Server) handleAdminReset(ctx *fasthttp.RequestCtx, tier string) {
	d := boarddto.Difficulty(tier)
	if !d.Valid() {
		s.writeError(ctx, fasthttp.StatusNotFound, boarddto.CodeNotFound, "unknown difficulty")
		return
	}
	rctx := reqid.With(ctx, requestID(ctx))
	s.board.Reset(rctx, d)
	s.log.Info("tier reset", zap.String("difficulty", tier), zap.String("cid", requestID(ctx)))
	s.writeSuccess(ctx, map[string]string{"difficulty": tier, "status": "reset"}, nil)
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }
