package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *MemoryStore) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	store := NewMemoryStore()
	return New(Config{BaseURL: server.URL + "/", Timeout: 2 * time.Second}, store), store
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestDo_SendsBearerTokenAndJSONContentType(t *testing.T) {
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	})
	require.NoError(t, store.Save(&Session{AccessToken: "tok"}))

	var out map[string]string
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/anything", nil, &out))
	assert.Equal(t, "yes", out["ok"])
}

func TestDo_WithoutSession_SendsNoAuthorization(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.Do(context.Background(), http.MethodGet, "/anything", nil, nil))
}

func TestDo_UnauthorizedClearsSession(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, status, map[string]string{"error": "Unauthorized"})
			})
			require.NoError(t, store.Save(&Session{AccessToken: "expired"}))

			err := c.Do(context.Background(), http.MethodGet, "/notes", nil, nil)
			assert.ErrorIs(t, err, ErrUnauthorized)

			s, err := store.Load()
			require.NoError(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestDo_NonSuccessReturnsAPIError(t *testing.T) {
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Note not found"})
	})
	require.NoError(t, store.Save(&Session{AccessToken: "tok"}))

	err := c.Do(context.Background(), http.MethodDelete, "/notes/1", nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Note not found", apiErr.Message)

	s, _ := store.Load()
	assert.NotNil(t, s, "session should be kept on non-auth errors")
}

func TestNewAPIError_PrefersProviderDescription(t *testing.T) {
	err := newAPIError(http.StatusBadRequest, []byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	assert.Equal(t, "Invalid login credentials", err.Message)

	err = newAPIError(http.StatusBadGateway, []byte(`<html>bad gateway</html>`))
	assert.Empty(t, err.Message)
	assert.Contains(t, err.Error(), "502")
}

func TestLogin_PersistsSession(t *testing.T) {
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		var body credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@example.com", body.Email)
		assert.Equal(t, "pw", body.Password)

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "tok",
			"refresh_token": "ref",
			"token_type":    "bearer",
			"expires_in":    3600,
			"user":          map[string]string{"id": "user-1", "email": "a@example.com"},
		})
	})

	s, err := c.Login(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.AccessToken)
	assert.Equal(t, "a@example.com", s.Email)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, s, stored)
}

func TestLogin_RejectedCredentials_DoesNotPersist(t *testing.T) {
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
	})

	_, err := c.Login(context.Background(), "a@example.com", "wrong")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)
	s, _ := store.Load()
	assert.Nil(t, s)
}

func TestRegister_ReturnsMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Registration successful. Please check your email for confirmation."})
	})

	msg, err := c.Register(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	assert.Contains(t, msg, "Registration successful")
}

func TestLogout_ClearsSessionEvenOnServerError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"no content", http.StatusNoContent, false},
		{"token already invalid", http.StatusUnauthorized, false},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				assert.Equal(t, "/auth/logout", r.URL.Path)
				if tt.status == http.StatusNoContent {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, map[string]string{"error": "x"})
			})
			require.NoError(t, store.Save(&Session{AccessToken: "tok"}))

			err := c.Logout(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, calls)

			s, _ := store.Load()
			assert.Nil(t, s)
		})
	}
}

func TestLogout_WithoutSession_SkipsRequest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})

	assert.NoError(t, c.Logout(context.Background()))
}

func TestCompleteOAuth_SavesSessionWithEmail(t *testing.T) {
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/user", r.URL.Path)
		assert.Equal(t, "Bearer gh-tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{"email": "gh@example.com"})
	})

	s, err := c.CompleteOAuth(context.Background(), "#access_token=gh-tok&refresh_token=ref&expires_in=3600")
	require.NoError(t, err)
	assert.Equal(t, "gh@example.com", s.Email)

	stored, _ := store.Load()
	require.NotNil(t, stored)
	assert.Equal(t, "gh-tok", stored.AccessToken)
	assert.Equal(t, "gh@example.com", stored.Email)

	_, err = c.CompleteOAuth(context.Background(), "#error=access_denied")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNoteOperations(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/notes":
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": 2, "owner_identity": "user-1", "title": "b", "content": "", "created_at": created},
				{"id": 1, "owner_identity": "user-1", "title": "a", "content": "", "created_at": created},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/notes":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusOK, map[string]any{"id": 3, "owner_identity": "user-1", "title": body["title"], "content": body["content"], "created_at": created})
		case r.Method == http.MethodPut && r.URL.Path == "/notes/3":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, hasTitle := body["title"]
			assert.False(t, hasTitle, "unset fields should not be sent")
			writeJSON(w, http.StatusOK, map[string]any{"id": 3, "owner_identity": "user-1", "title": "t", "content": body["content"], "created_at": created})
		case r.Method == http.MethodDelete && r.URL.Path == "/notes/3":
			writeJSON(w, http.StatusOK, map[string]int{"id": 3})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	require.NoError(t, store.Save(&Session{AccessToken: "tok"}))
	ctx := context.Background()

	notes, err := c.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, int64(2), notes[0].ID)
	assert.True(t, notes[0].CreatedAt.Equal(created))

	n, err := c.CreateNote(ctx, "t", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n.ID)
	assert.Equal(t, "c", n.Content)

	content := "updated"
	n, err = c.UpdateNote(ctx, 3, NoteUpdate{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "updated", n.Content)

	assert.NoError(t, c.DeleteNote(ctx, 3))
}

func TestGitHubLoginURL(t *testing.T) {
	c := New(Config{BaseURL: "https://notes.example.com/"}, NewMemoryStore())
	assert.Equal(t, "https://notes.example.com/auth/oauth/github", c.GitHubLoginURL())
}
