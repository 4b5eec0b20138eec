package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/notesapp/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したNoteRepositoryの実装。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

// ListByOwner は所有者のメモを作成日時の降順で返す。
func (r *PostgresNoteRepo) ListByOwner(ctx context.Context, ownerIdentity string) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_identity, title, content, created_at
		 FROM notes
		 WHERE owner_identity = $1
		 ORDER BY created_at DESC, id DESC`,
		ownerIdentity,
	)
	if err != nil {
		return nil, fmt.Errorf("メモ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	notes := []*model.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("メモの読み取りに失敗しました: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メモ一覧の走査に失敗しました: %w", err)
	}
	return notes, nil
}

// Create はメモを保存し、採番されたIDと作成日時をnoteに設定する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO notes (owner_identity, title, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		note.OwnerIdentity, note.Title, note.Content,
	).Scan(&note.ID, &note.CreatedAt)
	if err != nil {
		return fmt.Errorf("メモの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateByIDAndOwner はIDと所有者の両方が一致するメモを部分更新する。
// nilのフィールドはCOALESCEで既存の値を保持する。
func (r *PostgresNoteRepo) UpdateByIDAndOwner(
	ctx context.Context,
	id int64,
	ownerIdentity string,
	update model.NoteUpdate,
) (*model.Note, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE notes
		 SET title = COALESCE($3, title), content = COALESCE($4, content)
		 WHERE id = $1 AND owner_identity = $2
		 RETURNING id, owner_identity, title, content, created_at`,
		id, ownerIdentity, update.Title, update.Content,
	)
	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("メモの更新に失敗しました: %w", err)
	}
	return note, nil
}

// DeleteByIDAndOwner はIDと所有者の両方が一致するメモを削除する。
func (r *PostgresNoteRepo) DeleteByIDAndOwner(ctx context.Context, id int64, ownerIdentity string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = $1 AND owner_identity = $2`,
		id, ownerIdentity,
	)
	if err != nil {
		return false, fmt.Errorf("メモの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

var _ NoteRepository = (*PostgresNoteRepo)(nil)
