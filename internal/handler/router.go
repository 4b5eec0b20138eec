package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/notesapp/internal/metrics"
	"github.com/hitoshi/notesapp/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsGatherer   prometheus.Gatherer
	IdentityResolver  middleware.IdentityResolver
	PathPolicy        *middleware.PathPolicy
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	IdentityProvider IdentityProvider
	TokenEvicter     TokenEvicter
	AuthConfig       AuthHandlerConfig

	// メモ
	NoteService NoteServiceInterface

	// ヘルスチェック・静的ファイル
	HealthChecker HealthChecker
	StaticDir     string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → SecurityHeaders → CORS → AuthGate → RateLimit(General, Write)
//
// 認証ゲートはルーターの最上位に配置し、PathPolicyで認証不要と判定されたパス以外は
// いずれのハンドラーにも到達する前にトークンを検証する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := deps.PathPolicy
	if policy == nil {
		policy = middleware.NewPathPolicy()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware("/notes", "/auth/"))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewAuthGateMiddleware(deps.IdentityResolver, policy, deps.Metrics))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(deps.RateLimiter.WriteMiddleware())
	}

	authHandler := NewAuthHandler(deps.IdentityProvider, deps.TokenEvicter, deps.AuthConfig)
	noteHandler := NewNoteHandler(deps.NoteService)

	// --- 認証不要のルート ---

	r.Get("/health", Health(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
		r.Post("/logout", authHandler.Logout)
		r.Get("/user", authHandler.CurrentUser)
		r.Get("/oauth/github", authHandler.GitHubLogin)
	})

	// --- 認証が必要なルート ---

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", noteHandler.ListNotes)
		r.Post("/", noteHandler.CreateNote)

		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", noteHandler.UpdateNote)
			r.Delete("/", noteHandler.DeleteNote)
		})
	})

	// トップページと静的ファイル
	if deps.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(deps.StaticDir)))
	}

	return r
}
