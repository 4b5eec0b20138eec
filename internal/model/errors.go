// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は境界をまたいで返される分類済みエラーを表す。
// Messageはクライアントにそのまま返すため、内部の詳細を含めないこと。
// 原因となったエラーはErrに保持し、ログにのみ出力する。
type APIError struct {
	Code    string // エラーコード（分類）
	Message string // クライアント向けメッセージ
	Err     error  // 原因エラー（レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeUpstreamFailure = "UPSTREAM_FAILURE"
	ErrCodeStorageFailure  = "STORAGE_FAILURE"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証失敗エラーを生成する。
// トークンの欠落・不正・期限切れを区別しない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthorized,
		Message: "Unauthorized",
	}
}

// NewNoteNotFoundError はメモ未検出エラーを生成する。
// 存在しない場合と他ユーザー所有の場合を区別しない。
func NewNoteNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: "Note not found",
	}
}

// NewBadRequestError は不正な入力エラーを生成する。
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewUpstreamError はIdPとの通信失敗エラーを生成する。
func NewUpstreamError(err error) *APIError {
	return &APIError{
		Code:    ErrCodeUpstreamFailure,
		Message: "Identity provider error",
		Err:     err,
	}
}

// NewStorageError はデータベース障害エラーを生成する。
func NewStorageError(err error) *APIError {
	return &APIError{
		Code:    ErrCodeStorageFailure,
		Message: "Database error",
		Err:     err,
	}
}

// NewInternalError は設定不備などの内部エラーを生成する。
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:    ErrCodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}
