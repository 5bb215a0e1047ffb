package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/voicelibrary/internal/model"
)

// PostgresCacheItemRepo はPostgreSQLテーブルを2次キャッシュとして使うストア。
// 期限切れ行は読み取り時に無視され、物理削除はクリーンアップジョブが行う。
type PostgresCacheItemRepo struct {
	db *sql.DB
}

// NewPostgresCacheItemRepo はPostgresCacheItemRepoを生成する。
func NewPostgresCacheItemRepo(db *sql.DB) *PostgresCacheItemRepo {
	return &PostgresCacheItemRepo{db: db}
}

// GetItem は有効期限内のアイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresCacheItemRepo) GetItem(ctx context.Context, userKey string) (*CacheItem, error) {
	item := &CacheItem{UserKey: userKey}
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM user_cache_items
		 WHERE user_key = $1 AND expires_at > now()`,
		userKey,
	).Scan(&raw, &item.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache item: %w", err)
	}

	item.Data = &model.UserDocument{}
	if err := json.Unmarshal(raw, item.Data); err != nil {
		return nil, fmt.Errorf("failed to decode cache item: %w", err)
	}
	return item, nil
}

// PutItem はアイテムをUPSERTする。
func (r *PostgresCacheItemRepo) PutItem(ctx context.Context, item *CacheItem) error {
	raw, err := json.Marshal(item.Data)
	if err != nil {
		return fmt.Errorf("failed to encode cache item: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_cache_items (user_key, data, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_key)
		 DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`,
		item.UserKey, raw, item.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put cache item: %w", err)
	}
	return nil
}

// DeleteExpired はexpires_atがnow以前のアイテムを削除する。
func (r *PostgresCacheItemRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_cache_items WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache items: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var (
	_ CacheItemStore          = (*PostgresCacheItemRepo)(nil)
	_ ExpiredCacheItemDeleter = (*PostgresCacheItemRepo)(nil)
)
