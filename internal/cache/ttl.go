// Package cache はプロセス内のユーザードキュメントキャッシュ（1次キャッシュ）を提供する。
package cache

import (
	"sync"
	"time"

	"github.com/hitoshi/voicelibrary/internal/model"
)

// entry はキャッシュされたドキュメントと有効期限。
type entry struct {
	doc       *model.UserDocument
	expiresAt time.Time
}

// TTLCache はユーザーキーごとにドキュメントを有効期限付きで保持する。
// 容量上限はなく、期限切れエントリは次回アクセス時に削除される（バックグラウンド掃除なし）。
// ミューテックスはmapの整合性のみを守り、リクエスト間の読み書きを直列化しない。
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry
	timeNow func() time.Time // テスト用
}

// NewTTLCache は空のTTLCacheを生成する。
func NewTTLCache() *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		timeNow: time.Now,
	}
}

// WithClock は時刻取得関数を差し替えたキャッシュを返す。テスト用。
func (c *TTLCache) WithClock(now func() time.Time) *TTLCache {
	c.timeNow = now
	return c
}

// Get はキーに対応するドキュメントのコピーを返す。
// now > expiresAt の場合はエントリを削除してfalseを返す。
func (c *TTLCache) Get(key string) (*model.UserDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.timeNow().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.doc.Clone(), true
}

// Put はドキュメントのコピーを保存し、有効期限を now + ttl にリセットする。
// 既存エントリは常に上書きされる。
func (c *TTLCache) Put(key string, doc *model.UserDocument, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		doc:       doc.Clone(),
		expiresAt: c.timeNow().Add(ttl),
	}
}

// Invalidate はキーのエントリを削除する。存在しない場合は何もしない。
func (c *TTLCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len は期限切れを含む保持エントリ数を返す。テストおよびメトリクス用。
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
