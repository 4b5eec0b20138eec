package model

// Identity は外部IdPが発行した認証済みユーザーを表す。
// ローカルには保存せず、メモの所有者IDとしてのみ使用する。
type Identity struct {
	ID    string
	Email string
}
