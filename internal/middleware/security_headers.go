package middleware

import "net/http"

// NewSecurityHeadersMiddleware はJSON APIとしてのセキュリティ関連ヘッダーを付与するミドルウェアを返す。
// 応答はユーザーごとの内容を含むため、キャッシュさせない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}
