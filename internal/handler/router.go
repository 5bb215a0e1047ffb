package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/voicelibrary/internal/metrics"
	"github.com/hitoshi/voicelibrary/internal/middleware"
)

// healthCheckTimeout はヘルスチェック時のストア疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// HealthChecker は永続ストアの疎通確認を行うインターフェース。
// *sql.DB はこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 会話処理
	Dispatcher SkillDispatcher

	// ミドルウェア依存
	RateLimiter  *middleware.RateLimiter
	MaxBodyBytes int64
	Logger       *slog.Logger

	// 運用エンドポイント
	// HealthCheckerがnilの場合（インメモリストア）はストア確認を省略する。
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
}

// NewRouter はエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → (POST /skill のみ) SkillRequest → Logging → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	skillHandler := NewSkillHandler(deps.Dispatcher, logger)

	r.Get("/health", healthHandler(deps.HealthChecker, logger))

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSkillRequestMiddleware(deps.MaxBodyBytes))
		r.Use(middleware.NewLoggingMiddleware(logger))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Post("/skill", skillHandler.Handle)
	})

	return r
}

// healthResponse は /health のレスポンス。
type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// healthHandler はヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Store: "skipped"}
		status := http.StatusOK

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			if err := checker.PingContext(ctx); err != nil {
				logger.Error("health check failed", slog.String("error", err.Error()))
				resp = healthResponse{Status: "unavailable", Store: "unreachable"}
				status = http.StatusServiceUnavailable
			} else {
				resp.Store = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}
