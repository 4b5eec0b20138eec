// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/notesapp/internal/model"
)

// NoteRepository はメモの永続化を担当する。
// すべての操作は所有者IDで絞り込み、他ユーザーのメモには触れない。
type NoteRepository interface {
	// ListByOwner は所有者のメモを作成日時の降順で返す。
	ListByOwner(ctx context.Context, ownerIdentity string) ([]*model.Note, error)
	// Create はメモを保存し、採番されたIDと作成日時をnoteに設定する。
	Create(ctx context.Context, note *model.Note) error
	// UpdateByIDAndOwner はIDと所有者の両方が一致するメモを部分更新する。
	// 一致するメモがない場合はnil, nilを返す。
	UpdateByIDAndOwner(ctx context.Context, id int64, ownerIdentity string, update model.NoteUpdate) (*model.Note, error)
	// DeleteByIDAndOwner はIDと所有者の両方が一致するメモを削除する。
	// 削除した場合はtrueを返す。
	DeleteByIDAndOwner(ctx context.Context, id int64, ownerIdentity string) (bool, error)
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanNote は1行分のメモを読み取る。
func scanNote(s rowScanner) (*model.Note, error) {
	note := &model.Note{}
	if err := s.Scan(&note.ID, &note.OwnerIdentity, &note.Title, &note.Content, &note.CreatedAt); err != nil {
		return nil, err
	}
	return note, nil
}
