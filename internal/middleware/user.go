// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hitoshi/voicelibrary/internal/model"
)

// DefaultMaxBodyBytes はスキルリクエストボディの最大サイズ。
const DefaultMaxBodyBytes int64 = 64 << 10

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// intentContextKey はリクエストコンテキストにインテント名を格納するためのキー。
	intentContextKey = contextKey("intent")
)

// requestEnvelope はボディからユーザーIDとインテントだけを読み出すための型。
type requestEnvelope struct {
	UserID string `json:"user_id"`
	Intent string `json:"intent"`
}

// NewSkillRequestMiddleware はJSONボディからuser_idとintentを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// ボディは後続のハンドラが再度読めるように差し戻す。
// 読み取れない場合もエラーにはせず、そのまま後続に渡す（検証はハンドラが行う）。
func NewSkillRequestMiddleware(maxBodyBytes int64) func(next http.Handler) http.Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewInvalidRequestError("body too large"))
					return
				}
				WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("unreadable body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var env requestEnvelope
			if json.Unmarshal(body, &env) == nil {
				ctx := r.Context()
				if env.UserID != "" {
					ctx = WithUserID(ctx, env.UserID)
				}
				if env.Intent != "" {
					ctx = context.WithValue(ctx, intentContextKey, env.Intent)
				}
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID はユーザーIDを格納したコンテキストを返す。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", errors.New("user ID not found in context")
	}
	return userID, nil
}

// IntentFromContext はリクエストコンテキストからインテント名を取得する。未設定なら空文字列。
func IntentFromContext(ctx context.Context) string {
	intent, _ := ctx.Value(intentContextKey).(string)
	return intent
}
