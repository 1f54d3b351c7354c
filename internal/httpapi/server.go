package httpapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/mines-leaderboard-go/internal/audit"
	"github.com/kapu/mines-leaderboard-go/internal/authtoken"
	"github.com/kapu/mines-leaderboard-go/internal/behavior"
	"github.com/kapu/mines-leaderboard-go/internal/config"
	"github.com/kapu/mines-leaderboard-go/internal/kvstore"
	"github.com/kapu/mines-leaderboard-go/internal/leaderboard"
	"github.com/kapu/mines-leaderboard-go/internal/obslog"
	"github.com/kapu/mines-leaderboard-go/internal/ratelimit"
	"github.com/kapu/mines-leaderboard-go/internal/validate"
	"github.com/kapu/mines-leaderboard-go/pkg/boarddto"
)

const requestIDKey = "requestId"

// Server wires the trust pipeline behind the public HTTP surface.
type Server struct {
	cfg       *config.AppConfig
	kv        *kvstore.Adapter
	limiter   *ratelimit.Limiter
	validator *validate.Validator
	analyzer  *behavior.Analyzer
	board     *leaderboard.Store
	auth      *authtoken.Authenticator
	audit     *audit.Repository
	log       *zap.Logger
	srv       *fasthttp.Server
}

type Deps struct {
	KV        *kvstore.Adapter
	Limiter   *ratelimit.Limiter
	Validator *validate.Validator
	Analyzer  *behavior.Analyzer
	Board     *leaderboard.Store
	Auth      *authtoken.Authenticator
	Audit     *audit.Repository
}

func New(cfg *config.AppConfig, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		kv:        deps.KV,
		limiter:   deps.Limiter,
		validator: deps.Validator,
		analyzer:  deps.Analyzer,
		board:     deps.Board,
		auth:      deps.Auth,
		audit:     deps.Audit,
		log:       obslog.Named("httpapi"),
	}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler(),
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 64 * 1024,
		Name:               "mines-board",
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error { return s.srv.ListenAndServe(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.ShutdownWithContext(ctx) }

// Handler returns the routing handler wrapped with request-id, CORS and
// access-log middleware. Exported so tests can drive it in-process.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.withRequestID(s.withCORS(s.withAccessLog(s.route)))
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, env boarddto.Envelope) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	if err := json.NewEncoder(ctx).Encode(env); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeSuccess(ctx *fasthttp.RequestCtx, data any, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta[requestIDKey] = requestID(ctx)
	s.writeJSON(ctx, fasthttp.StatusOK, boarddto.Envelope{Success: true, Data: data, Meta: meta})
}

// writeError emits the failure envelope. Internal heuristics and dependency
// state never leak through message.
func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	s.writeJSON(ctx, status, boarddto.Envelope{
		Success: false,
		Error: &boarddto.ErrorBody{
			Code:      code,
			Message:   message,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			RequestID: requestID(ctx),
		},
	})
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if v, ok := ctx.UserValue(requestIDKey).(string); ok {
		return v
	}
	return ""
}
