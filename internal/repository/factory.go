package repository

import (
	"database/sql"
	"fmt"
)

// NewNoteRepository はドライバ名に対応するNoteRepositoryを返す。
func NewNoteRepository(driver string, db *sql.DB) (NoteRepository, error) {
	switch driver {
	case "postgres":
		return NewPostgresNoteRepo(db), nil
	case "mysql":
		return NewMySQLNoteRepo(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
}
