package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/notesapp/internal/middleware"
	"github.com/hitoshi/notesapp/internal/model"
)

// maxNoteBodyBytes はメモ作成・更新リクエストの本文サイズ上限。
const maxNoteBodyBytes = 1 << 20

// NoteServiceInterface はメモハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	// List はユーザーのメモを作成日時の降順で返す。
	List(ctx context.Context, userID string) ([]*model.Note, error)
	// Create はユーザーのメモを作成する。
	Create(ctx context.Context, userID string, title, content *string) (*model.Note, error)
	// Update はユーザーのメモを部分更新する。
	Update(ctx context.Context, userID string, id int64, update model.NoteUpdate) (*model.Note, error)
	// Delete はユーザーのメモを削除する。
	Delete(ctx context.Context, userID string, id int64) error
}

// NoteHandler はメモ管理のHTTPハンドラー。
// ユーザーIDは常に認証ゲートが設定した値を使い、リクエスト本文からは受け取らない。
type NoteHandler struct {
	service NoteServiceInterface
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface) *NoteHandler {
	return &NoteHandler{service: service}
}

// noteResponse はメモのAPIレスポンス。
type noteResponse struct {
	ID            int64     `json:"id"`
	OwnerIdentity string    `json:"owner_identity"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}

// noteRequest はメモ作成・更新リクエストのボディ。
// 省略されたフィールドはnilになる。
type noteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func toNoteResponse(n *model.Note) noteResponse {
	return noteResponse{
		ID:            n.ID,
		OwnerIdentity: n.OwnerIdentity,
		Title:         n.Title,
		Content:       n.Content,
		CreatedAt:     n.CreatedAt,
	}
}

// ListNotes はユーザーのメモ一覧を返す。
// GET /notes
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	notes, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]noteResponse, len(notes))
	for i, n := range notes {
		resp[i] = toNoteResponse(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateNote はメモを作成する。本文が空の場合は空のメモを作成する。
// POST /notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewBadRequestError("Invalid JSON"))
		return
	}

	n, err := h.service.Create(r.Context(), userID, req.Title, req.Content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(n))
}

// UpdateNote はメモを部分更新する。指定されたフィールドのみ上書きする。
// PUT /notes/{id}
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, ok := noteIDParam(r)
	if !ok {
		middleware.WriteAPIError(w, model.NewNoteNotFoundError())
		return
	}

	var req noteRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewBadRequestError("Invalid JSON"))
		return
	}

	n, err := h.service.Update(r.Context(), userID, id, model.NoteUpdate{Title: req.Title, Content: req.Content})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(n))
}

// DeleteNote はメモを削除し、削除したIDを返す。
// DELETE /notes/{id}
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, ok := noteIDParam(r)
	if !ok {
		middleware.WriteAPIError(w, model.NewNoteNotFoundError())
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

// noteIDParam はURLパラメータのメモIDを解析する。
// 整数でないIDは存在しないメモと同じ扱いにする。
func noteIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeOptionalJSON はリクエスト本文をJSONとして読み取る。
// 本文が空の場合はvを変更せずnilを返す。
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxNoteBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
