// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, system
	Action   string // 呼び出し元向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeMissingUserID  = "MISSING_USER_ID"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエスト形式不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの形式が不正です: %s", reason),
		Category: "validation",
		Action:   "JSON形式のリクエストボディを送信してください。",
	}
}

// NewMissingUserIDError はユーザーID未指定エラーを生成する。
func NewMissingUserIDError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingUserID,
		Message:  "user_idが指定されていません。",
		Category: "validation",
		Action:   "会話ホストから渡されたユーザーIDを指定してください。",
	}
}

// ErrCacheUnavailable は二次キャッシュが利用できないことを表す。
// 呼び出し元には返さず、ログにのみ記録する。
var ErrCacheUnavailable = errors.New("secondary cache unavailable")

// PersistenceError は永続ストアへの書き込み失敗を表す。
// このエラーが返った場合、データが保存されたと利用者に伝えてはならない。
type PersistenceError struct {
	UserKey string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist user document %s: %v", e.UserKey, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError はerrがPersistenceErrorを含むかを判定する。
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
