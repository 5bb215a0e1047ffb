// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/voicelibrary/internal/model"
)

// DocumentStore はユーザードキュメントの永続ストア（正本）のインターフェース。
// バックエンドの種類には依存せず、読み書きとその失敗の意味だけを定める。
type DocumentStore interface {
	// Read は指定ユーザーのドキュメントを取得する。
	// 初回ユーザーなど存在しない場合はnil, nilを返す。
	Read(ctx context.Context, userKey string) (*model.UserDocument, error)

	// Write はドキュメント全体を置き換えて保存する。
	// 差分ではなく全体置換のため、同じ内容の再書き込みは冪等。
	Write(ctx context.Context, userKey string, doc *model.UserDocument) error
}

// CacheItem は2次キャッシュに保存される1件分のデータ。
type CacheItem struct {
	UserKey   string
	Data      *model.UserDocument
	ExpiresAt time.Time
}

// CacheItemStore は2次キャッシュ（外部のキーバリューストア）のインターフェース。
type CacheItemStore interface {
	// GetItem は有効期限内のアイテムを取得する。存在しない場合はnil, nilを返す。
	GetItem(ctx context.Context, userKey string) (*CacheItem, error)

	// PutItem はアイテムを上書き保存する。
	PutItem(ctx context.Context, item *CacheItem) error
}

// ExpiredCacheItemDeleter は期限切れの2次キャッシュアイテムを削除するインターフェース。
// クリーンアップジョブから利用する。
type ExpiredCacheItemDeleter interface {
	// DeleteExpired はnow時点で期限切れのアイテムを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
