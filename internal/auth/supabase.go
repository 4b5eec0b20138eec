// Package auth は外部IdP（Supabase Auth）との通信とトークン検証を提供する。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hitoshi/notesapp/internal/model"
)

const defaultTimeout = 10 * time.Second

// Result はIdPの応答をステータスコードとJSON本文の組で表す。
// 204の場合はBodyがnilになる。
type Result struct {
	Status int
	Body   json.RawMessage
}

// Field は本文のトップレベルフィールドを文字列として返す。
// 本文がオブジェクトでない場合やフィールドが文字列でない場合は空文字列を返す。
func (r *Result) Field(name string) string {
	var m map[string]any
	if err := json.Unmarshal(r.Body, &m); err != nil {
		return ""
	}
	s, _ := m[name].(string)
	return s
}

// IdentityResolver はアクセストークンから認証済みユーザーを解決する。
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*model.Identity, error)
}

// SupabaseConfig はSupabaseClientの設定。
type SupabaseConfig struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
}

// SupabaseClient はSupabase AuthのREST APIを呼び出す。
// ネットワーク障害やJSONの解析失敗もResultとして返し、errorは返さない。
// 再試行は行わない。
type SupabaseClient struct {
	baseURL string
	http    *resty.Client
}

// NewSupabaseClient はSupabaseClientを生成する。
func NewSupabaseClient(cfg SupabaseConfig) *SupabaseClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Content-Type", "application/json")
	return &SupabaseClient{baseURL: baseURL, http: client}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	credentials
	Options signupOptions `json:"options"`
}

type signupOptions struct {
	EmailRedirectTo string `json:"email_redirect_to"`
}

// Signup はメール・パスワードでユーザーを登録する。
// 応答にidが含まれない場合、呼び出し側は失敗として扱う。
func (c *SupabaseClient) Signup(ctx context.Context, email, password, redirectTo string) *Result {
	body := signupRequest{
		credentials: credentials{Email: email, Password: password},
		Options:     signupOptions{EmailRedirectTo: redirectTo},
	}
	return c.do(ctx, http.MethodPost, "/auth/v1/signup", body, "")
}

// Login はメール・パスワードでログインし、IdPのセッション情報をそのまま返す。
func (c *SupabaseClient) Login(ctx context.Context, email, password string) *Result {
	return c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password",
		credentials{Email: email, Password: password}, "")
}

// Logout はトークンを無効化する。
func (c *SupabaseClient) Logout(ctx context.Context, token string) *Result {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, token)
}

// GetUser はトークンに対応するユーザー情報を取得する。
func (c *SupabaseClient) GetUser(ctx context.Context, token string) *Result {
	return c.do(ctx, http.MethodGet, "/auth/v1/user", nil, token)
}

// ResolveIdentity はトークンを検証し、認証済みユーザーを返す。
// IdPの障害（5xx、通信失敗）はUpstreamError、それ以外の失敗はUnauthorizedErrorを返す。
func (c *SupabaseClient) ResolveIdentity(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, model.NewUnauthorizedError()
	}

	res := c.GetUser(ctx, token)
	if res.Status >= http.StatusInternalServerError {
		return nil, model.NewUpstreamError(fmt.Errorf("user lookup failed: status=%d body=%s", res.Status, res.Body))
	}
	if res.Status != http.StatusOK {
		slog.Debug("token rejected by identity provider", slog.Int("status", res.Status))
		return nil, model.NewUnauthorizedError()
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(res.Body, &user); err != nil || user.ID == "" {
		return nil, model.NewUnauthorizedError()
	}
	return &model.Identity{ID: user.ID, Email: user.Email}, nil
}

// GitHubAuthorizeURL はGitHub OAuthの認可URLを生成する。
// redirectToの妥当性はIdP側で検証されるため、ここでは検証しない。
func (c *SupabaseClient) GitHubAuthorizeURL(redirectTo string) string {
	return fmt.Sprintf("%s/auth/v1/authorize?provider=github&redirect_to=%s&scopes=user:email",
		c.baseURL, url.QueryEscape(redirectTo))
}

// do はリクエストを送信し、応答をResultに正規化する。
func (c *SupabaseClient) do(ctx context.Context, method, path string, body any, token string) *Result {
	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		slog.Error("identity provider request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return errorResult(fmt.Sprintf("Network error: %v", err))
	}

	if resp.StatusCode() == http.StatusNoContent {
		return &Result{Status: http.StatusNoContent}
	}

	raw := resp.Body()
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return errorResult(fmt.Sprintf("JSON parse error: %v", err))
	}
	return &Result{Status: resp.StatusCode(), Body: json.RawMessage(raw)}
}

// errorResult は500と{"error": message}の組を生成する。
func errorResult(message string) *Result {
	body, _ := json.Marshal(map[string]string{"error": message})
	return &Result{Status: http.StatusInternalServerError, Body: body}
}

var _ IdentityResolver = (*SupabaseClient)(nil)
