// Package note はメモ管理のドメインロジックを提供する。
// すべての操作は認証済みユーザーのIDで範囲を限定する。
package note

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/notesapp/internal/metrics"
	"github.com/hitoshi/notesapp/internal/model"
	"github.com/hitoshi/notesapp/internal/repository"
)

// 操作名（メトリクスのラベル）
const (
	opList   = "list"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// Service はメモ管理のサービス層。
// リポジトリの障害はStorageErrorに、未検出・他ユーザー所有はNotFoundErrorに変換する。
type Service struct {
	repo    repository.NoteRepository
	metrics metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// mcがnilの場合はメトリクスを記録しない。
func NewService(repo repository.NoteRepository, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Service{repo: repo, metrics: mc}
}

// List はユーザーのメモを作成日時の降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Note, error) {
	notes, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, s.storageFailure(ctx, opList, userID, err)
	}
	s.metrics.RecordNoteOperation(opList, metrics.OutcomeSuccess)
	return notes, nil
}

// Create はユーザーのメモを作成する。
// タイトル・本文が省略された場合は空文字列として保存する。
func (s *Service) Create(ctx context.Context, userID string, title, content *string) (*model.Note, error) {
	n := &model.Note{
		OwnerIdentity: userID,
		Title:         valueOrEmpty(title),
		Content:       valueOrEmpty(content),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, s.storageFailure(ctx, opCreate, userID, err)
	}

	slog.InfoContext(ctx, "note created",
		slog.String("user_id", userID),
		slog.Int64("note_id", n.ID),
	)
	s.metrics.RecordNoteOperation(opCreate, metrics.OutcomeSuccess)
	return n, nil
}

// Update はユーザーのメモを部分更新する。指定されたフィールドのみ上書きする。
// メモが存在しない場合と他ユーザーの所有である場合を区別せずNotFoundErrorを返す。
func (s *Service) Update(ctx context.Context, userID string, id int64, update model.NoteUpdate) (*model.Note, error) {
	n, err := s.repo.UpdateByIDAndOwner(ctx, id, userID, update)
	if err != nil {
		return nil, s.storageFailure(ctx, opUpdate, userID, err)
	}
	if n == nil {
		s.metrics.RecordNoteOperation(opUpdate, metrics.OutcomeNotFound)
		return nil, model.NewNoteNotFoundError()
	}
	s.metrics.RecordNoteOperation(opUpdate, metrics.OutcomeSuccess)
	return n, nil
}

// Delete はユーザーのメモを削除する。削除は物理削除とする。
func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	deleted, err := s.repo.DeleteByIDAndOwner(ctx, id, userID)
	if err != nil {
		return s.storageFailure(ctx, opDelete, userID, err)
	}
	if !deleted {
		s.metrics.RecordNoteOperation(opDelete, metrics.OutcomeNotFound)
		return model.NewNoteNotFoundError()
	}

	slog.InfoContext(ctx, "note deleted",
		slog.String("user_id", userID),
		slog.Int64("note_id", id),
	)
	s.metrics.RecordNoteOperation(opDelete, metrics.OutcomeSuccess)
	return nil
}

// storageFailure はリポジトリの障害をログに出力し、StorageErrorに変換する。
func (s *Service) storageFailure(ctx context.Context, op, userID string, err error) error {
	slog.ErrorContext(ctx, "note storage failure",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	s.metrics.RecordNoteOperation(op, metrics.OutcomeError)
	return model.NewStorageError(fmt.Errorf("%s: %w", op, err))
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
