// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/hitoshi/notesapp/internal/metrics"
	"github.com/hitoshi/notesapp/internal/model"
)

// UserIDHeader は認証ゲートが下流に渡す信頼済みユーザーIDのヘッダー名。
// クライアントが送信した値は常に削除する。
const UserIDHeader = "X-User-Id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// defaultExemptPatterns は認証不要パスのパターン。
// 認証API、ヘルスチェック、メトリクス、トップページを対象とする。
var defaultExemptPatterns = []string{
	`^/$`,
	`^/favicon\.ico$`,
	`^/auth/`,
	`^/health$`,
	`^/metrics$`,
}

// staticAssetPattern は静的ファイルの拡張子。GET・HEADの場合のみ認証不要とする。
var staticAssetPattern = regexp.MustCompile(`\.(html|css|js|png|svg|ico|map|txt)$`)

// GateRejectedRoute は認証ゲートが拒否したリクエストのログ・メトリクス上のルート名。
// ルーティング前に拒否するため、chiのルートパターンの代わりに使う。
const GateRejectedRoute = "auth_gate"

// protectedPrefixes 配下のパスは拡張子や追加の公開パスに関わらず常に保護対象とする。
var protectedPrefixes = []string{"/notes"}

// IdentityResolver はトークンからユーザーを解決するインターフェース。
// auth.SupabaseClientおよびauth.TokenCacheが満たす。
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*model.Identity, error)
}

// PathPolicy はリクエストパスが認証不要かどうかを判定する。
// すべてのパスは認証不要か保護対象のどちらかに必ず分類される。
type PathPolicy struct {
	exempt []*regexp.Regexp
}

// NewPathPolicy はデフォルトの認証不要パスに、publicPathsを完全一致で追加したPathPolicyを生成する。
func NewPathPolicy(publicPaths ...string) *PathPolicy {
	p := &PathPolicy{}
	for _, pattern := range defaultExemptPatterns {
		p.exempt = append(p.exempt, regexp.MustCompile(pattern))
	}
	for _, path := range publicPaths {
		p.exempt = append(p.exempt, regexp.MustCompile("^"+regexp.QuoteMeta(path)+"$"))
	}
	return p
}

// IsExempt はmethodとpathの組が認証不要の場合にtrueを返す。
func (p *PathPolicy) IsExempt(method, path string) bool {
	if slices.ContainsFunc(protectedPrefixes, func(prefix string) bool {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}) {
		return false
	}
	if (method == http.MethodGet || method == http.MethodHead) && staticAssetPattern.MatchString(path) {
		return true
	}
	return slices.ContainsFunc(p.exempt, func(re *regexp.Regexp) bool {
		return re.MatchString(path)
	})
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーがない場合や形式が不正な場合は空文字列を返す。
func BearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// NewAuthGateMiddleware はBearerトークンを検証する認証ゲートを返す。
// 保護対象パスではリクエストごとにトークンをIdPで解決し、
// 失敗した場合は401を返して後続のハンドラーを呼び出さない。
// 成功した場合はユーザーIDをコンテキストとX-User-Idヘッダーに設定する。
func NewAuthGateMiddleware(resolver IdentityResolver, policy *PathPolicy, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(UserIDHeader)

			if policy.IsExempt(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := BearerToken(r)
			if token == "" {
				mc.RecordIdentityResolution(metrics.OutcomeUnauthorized)
				setLoggedRoute(r.Context(), GateRejectedRoute)
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			identity, err := resolver.ResolveIdentity(r.Context(), token)
			if err != nil || identity == nil || identity.ID == "" {
				outcome := metrics.OutcomeUnauthorized
				var apiErr *model.APIError
				if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUpstreamFailure {
					outcome = metrics.OutcomeError
					slog.ErrorContext(r.Context(), "identity resolution failed",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				mc.RecordIdentityResolution(outcome)
				setLoggedRoute(r.Context(), GateRejectedRoute)
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			mc.RecordIdentityResolution(metrics.OutcomeSuccess)
			setLoggedUserID(r.Context(), identity.ID)
			r.Header.Set(UserIDHeader, identity.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), identity.ID)))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ゲートを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
