package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/notesapp/internal/auth"
	"github.com/hitoshi/notesapp/internal/middleware"
	"github.com/hitoshi/notesapp/internal/model"
)

// registrationMessage は登録成功時に返すメッセージ。
const registrationMessage = "Registration successful. Please check your email for confirmation."

// IdentityProvider は認証ハンドラーが必要とするIdPクライアントのインターフェース。
type IdentityProvider interface {
	Signup(ctx context.Context, email, password, redirectTo string) *auth.Result
	Login(ctx context.Context, email, password string) *auth.Result
	Logout(ctx context.Context, token string) *auth.Result
	GetUser(ctx context.Context, token string) *auth.Result
	GitHubAuthorizeURL(redirectTo string) string
}

// TokenEvicter はログアウトしたトークンを検証キャッシュから削除する。
type TokenEvicter interface {
	Evict(token string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// BaseURL はメール確認・OAuth後のリダイレクト先。
	// 空の場合はリクエストのX-Forwarded-*ヘッダーとHostから組み立てる。
	BaseURL string
}

// AuthHandler は認証関連のHTTPハンドラー。
// 認証ゲートの対象外で、IdPへの要求をそのまま中継する。
type AuthHandler struct {
	provider IdentityProvider
	evicter  TokenEvicter
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。evicterはnilでもよい。
func NewAuthHandler(provider IdentityProvider, evicter TokenEvicter, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		evicter:  evicter,
		config:   config,
	}
}

// credentialsRequest はログイン・登録リクエストのボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメール・パスワードでログインする。IdPの応答をステータスごと返す。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewBadRequestError("Invalid JSON"))
		return
	}

	res := h.provider.Login(r.Context(), req.Email, req.Password)
	writeResult(w, res)
}

// Register はメール・パスワードでユーザーを登録する。
// IdPがユーザーIDを返した場合のみ成功とし、それ以外はIdPの応答を400で返す。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewBadRequestError("Invalid JSON"))
		return
	}

	res := h.provider.Signup(r.Context(), req.Email, req.Password, h.baseURL(r))
	if res.Field("id") != "" {
		writeJSON(w, http.StatusOK, map[string]string{"message": registrationMessage})
		return
	}

	slog.WarnContext(r.Context(), "registration rejected by identity provider",
		slog.Int("provider_status", res.Status),
	)
	if res.Body == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "Registration failed")
		return
	}
	writeRawJSON(w, http.StatusBadRequest, res.Body)
}

// Logout はトークンを無効化する。IdPが204を返した場合は本文なしで204を返す。
// Bearer以外の認証スキームはIdPへ中継せず、ヘッダーなしと同じ扱いにする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "Authorization header missing")
		return
	}

	if h.evicter != nil {
		h.evicter.Evict(token)
	}

	res := h.provider.Logout(r.Context(), token)
	writeResult(w, res)
}

// CurrentUser はトークンに対応するユーザーのメールアドレスを返す。
// GET /auth/user
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	res := h.provider.GetUser(r.Context(), middleware.BearerToken(r))

	var user struct {
		Email *string `json:"email"`
	}
	json.Unmarshal(res.Body, &user)
	writeJSON(w, res.Status, map[string]*string{"email": user.Email})
}

// GitHubLogin はGitHub OAuthの認可URLへリダイレクトする。
// GET /auth/oauth/github
func (h *AuthHandler) GitHubLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.provider.GitHubAuthorizeURL(h.baseURL(r)), http.StatusFound)
}

// baseURL はリダイレクト先のベースURLを返す。
func (h *AuthHandler) baseURL(r *http.Request) string {
	if h.config.BaseURL != "" {
		return strings.TrimRight(h.config.BaseURL, "/") + "/"
	}
	return requestBaseURL(r)
}

// requestBaseURL はリバースプロキシのヘッダーを考慮してリクエスト元のベースURLを組み立てる。
func requestBaseURL(r *http.Request) string {
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return fmt.Sprintf("%s://%s/", scheme, host)
}

// writeResult はIdPの応答を中継する。204は本文を書き込まない。
func writeResult(w http.ResponseWriter, res *auth.Result) {
	if res.Status == http.StatusNoContent || res.Body == nil {
		w.WriteHeader(res.Status)
		return
	}
	writeRawJSON(w, res.Status, res.Body)
}
