package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/notesapp/internal/model"
)

// MySQLNoteRepo はMySQL互換データベース（TiDBを含む）を使用したNoteRepositoryの実装。
// RETURNING句を使えないため、更新は同一トランザクション内で再取得する。
type MySQLNoteRepo struct {
	db *sql.DB
}

// NewMySQLNoteRepo はMySQLNoteRepoを生成する。
func NewMySQLNoteRepo(db *sql.DB) *MySQLNoteRepo {
	return &MySQLNoteRepo{db: db}
}

const mysqlSelectNoteColumns = `SELECT id, owner_identity, title, content, created_at FROM notes`

// ListByOwner は所有者のメモを作成日時の降順で返す。
func (r *MySQLNoteRepo) ListByOwner(ctx context.Context, ownerIdentity string) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		mysqlSelectNoteColumns+` WHERE owner_identity = ? ORDER BY created_at DESC, id DESC`,
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
func (r *MySQLNoteRepo) Create(ctx context.Context, note *model.Note) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (owner_identity, title, content) VALUES (?, ?, ?)`,
		note.OwnerIdentity, note.Title, note.Content,
	)
	if err != nil {
		return fmt.Errorf("メモの作成に失敗しました: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("採番されたIDの取得に失敗しました: %w", err)
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT created_at FROM notes WHERE id = ?`, id,
	).Scan(&note.CreatedAt); err != nil {
		return fmt.Errorf("作成日時の取得に失敗しました: %w", err)
	}
	note.ID = id
	return nil
}

// UpdateByIDAndOwner はIDと所有者の両方が一致するメモを部分更新する。
func (r *MySQLNoteRepo) UpdateByIDAndOwner(
	ctx context.Context,
	id int64,
	ownerIdentity string,
	update model.NoteUpdate,
) (*model.Note, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 値が変わらない場合にaffected rowsが0になるため、件数では存在判定しない
	_, err = tx.ExecContext(ctx,
		`UPDATE notes
		 SET title = COALESCE(?, title), content = COALESCE(?, content)
		 WHERE id = ? AND owner_identity = ?`,
		update.Title, update.Content, id, ownerIdentity,
	)
	if err != nil {
		return nil, fmt.Errorf("メモの更新に失敗しました: %w", err)
	}

	note, err := scanNote(tx.QueryRowContext(ctx,
		mysqlSelectNoteColumns+` WHERE id = ? AND owner_identity = ?`,
		id, ownerIdentity,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("更新後のメモの取得に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return note, nil
}

// DeleteByIDAndOwner はIDと所有者の両方が一致するメモを削除する。
func (r *MySQLNoteRepo) DeleteByIDAndOwner(ctx context.Context, id int64, ownerIdentity string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND owner_identity = ?`,
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

var _ NoteRepository = (*MySQLNoteRepo)(nil)
