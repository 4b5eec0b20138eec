// Package client はメモAPIのGoクライアントを提供する。
// セッションはSessionStoreに保存し、認証エラーを受け取った時点で破棄する。
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnauthorized はサーバーが401または403を返したことを示す。
// 受け取った時点でローカルのセッションは破棄されているため、再ログインが必要。
var ErrUnauthorized = errors.New("client: unauthorized")

// APIError はサーバーが2xx以外（401・403を除く）を返したことを示す。
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: status %d", e.Status)
	}
	return fmt.Sprintf("client: status %d: %s", e.Status, e.Message)
}

// Config はClientの設定。
type Config struct {
	BaseURL string
	// Timeout はリクエストごとのタイムアウト。0の場合は10秒。
	Timeout time.Duration
}

// Client はメモAPIのクライアント。
type Client struct {
	baseURL string
	http    *resty.Client
	store   SessionStore
}

// New はClientを生成する。
func New(cfg Config, store SessionStore) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		store: store,
	}
}

// Do はAPIにリクエストを送信し、応答をoutにデコードする。
// 保存済みのセッションがあればBearerトークンを付与する。
// 401・403の場合はセッションを破棄してErrUnauthorizedを返す。
// 204の場合とoutがnilの場合は応答本文を解析しない。
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)

	session, err := c.store.Load()
	if err != nil {
		return err
	}
	if session != nil && session.AccessToken != "" {
		req.SetAuthToken(session.AccessToken)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %sの送信に失敗しました: %w", method, path, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if err := c.store.Clear(); err != nil {
			return err
		}
		return ErrUnauthorized
	case status == http.StatusNoContent:
		return nil
	case !resp.IsSuccess():
		return newAPIError(status, resp.Body())
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s %sの応答の解析に失敗しました: %w", method, path, err)
	}
	return nil
}

// newAPIError は応答本文からエラーメッセージを取り出す。
// IdPの詳細メッセージ（error_description, msg）をサーバーのerrorより優先する。
func newAPIError(status int, body []byte) *APIError {
	var fields struct {
		Error            string `json:"error"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
	}
	json.Unmarshal(body, &fields)

	msg := fields.ErrorDescription
	if msg == "" {
		msg = fields.Msg
	}
	if msg == "" {
		msg = fields.Error
	}
	return &APIError{Status: status, Message: msg, Body: body}
}

// Session は保存済みのセッションを返す。未ログインの場合はnilを返す。
func (c *Client) Session() (*Session, error) {
	return c.store.Load()
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメール・パスワードでログインし、セッションを保存する。
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp struct {
		Session
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := c.Do(ctx, http.MethodPost, "/auth/login", credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &APIError{Status: http.StatusOK, Message: "access token missing in login response"}
	}

	s := resp.Session
	s.Email = resp.User.Email
	if s.Email == "" {
		s.Email = email
	}
	if err := c.store.Save(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Register はユーザーを登録し、サーバーのメッセージを返す。
// 確認メールの承認が済むまでログインはできない。
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.Do(ctx, http.MethodPost, "/auth/register", credentials{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Logout はサーバー側のトークンを無効化し、ローカルのセッションを破棄する。
// サーバーがエラーを返した場合もローカルのセッションは破棄する。
func (c *Client) Logout(ctx context.Context) error {
	session, err := c.store.Load()
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	err = c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if clearErr := c.store.Clear(); clearErr != nil {
		return clearErr
	}
	if errors.Is(err, ErrUnauthorized) {
		return nil
	}
	return err
}

// CompleteOAuth はOAuthリダイレクト後のURLフラグメントからセッションを保存する。
// フラグメントにトークンが含まれない場合はErrUnauthorizedを返す。
func (c *Client) CompleteOAuth(ctx context.Context, fragment string) (*Session, error) {
	s, err := SessionFromFragment(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrUnauthorized
	}
	if err := c.store.Save(s); err != nil {
		return nil, err
	}

	email, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	s.Email = email
	if err := c.store.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// CurrentUser はログイン中のユーザーのメールアドレスを返す。
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var resp struct {
		Email string `json:"email"`
	}
	if err := c.Do(ctx, http.MethodGet, "/auth/user", nil, &resp); err != nil {
		return "", err
	}
	return resp.Email, nil
}

// GitHubLoginURL はGitHubログインを開始するURLを返す。
func (c *Client) GitHubLoginURL() string {
	return c.baseURL + "/auth/oauth/github"
}

// Note はAPIが返すメモ。
type Note struct {
	ID            int64     `json:"id"`
	OwnerIdentity string    `json:"owner_identity"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}

// NoteUpdate はメモの部分更新内容。nilのフィールドは送信しない。
type NoteUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// ListNotes はメモを新しい順に返す。
func (c *Client) ListNotes(ctx context.Context) ([]Note, error) {
	var notes []Note
	if err := c.Do(ctx, http.MethodGet, "/notes", nil, &notes); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

// CreateNote はメモを作成する。
func (c *Client) CreateNote(ctx context.Context, title, content string) (*Note, error) {
	var n Note
	body := map[string]string{"title": title, "content": content}
	if err := c.Do(ctx, http.MethodPost, "/notes", body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNote はメモを部分更新する。
func (c *Client) UpdateNote(ctx context.Context, id int64, update NoteUpdate) (*Note, error) {
	var n Note
	if err := c.Do(ctx, http.MethodPut, notePath(id), update, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNote はメモを削除する。
func (c *Client) DeleteNote(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodDelete, notePath(id), nil, nil)
}

func notePath(id int64) string {
	return "/notes/" + strconv.FormatInt(id, 10)
}
