package model

import "time"

// Note はユーザーが所有するテキストメモを表す。
// OwnerIdentityとCreatedAtは作成後に変更しない。
type Note struct {
	ID            int64
	OwnerIdentity string
	Title         string
	Content       string
	CreatedAt     time.Time
}

// NoteUpdate はメモの部分更新内容を表す。
// nilのフィールドは既存の値を保持する。
type NoteUpdate struct {
	Title   *string
	Content *string
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (u NoteUpdate) IsEmpty() bool {
	return u.Title == nil && u.Content == nil
}
