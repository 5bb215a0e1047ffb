package userdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/voicelibrary/internal/metrics"
	"github.com/hitoshi/voicelibrary/internal/model"
	"github.com/hitoshi/voicelibrary/internal/repository"
)

// SecondaryCache は外部キーバリューストアを使う2次キャッシュのアダプタ。
// キャッシュは任意の層であり、ストアが使えない場合もエラーを返さずミス扱いにする。
type SecondaryCache struct {
	store   repository.CacheItemStore
	ttl     time.Duration
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	timeNow func() time.Time
}

// NewSecondaryCache はSecondaryCacheを生成する。
// ttlは書き込むアイテムの有効期限で、期限切れアイテムの削除はストア側に委ねる。
func NewSecondaryCache(
	store repository.CacheItemStore,
	ttl time.Duration,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *SecondaryCache {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &SecondaryCache{
		store:   store,
		ttl:     ttl,
		logger:  logger,
		metrics: collector,
		timeNow: time.Now,
	}
}

// Get はキーに対応するドキュメントを返す。
// ストアのエラー、未登録、期限切れはいずれもfalseを返す。
func (s *SecondaryCache) Get(ctx context.Context, key string) (*model.UserDocument, bool) {
	item, err := s.store.GetItem(ctx, key)
	if err != nil {
		s.metrics.RecordCacheError(metrics.TierSecondary)
		s.logger.Warn("secondary cache get failed, treating as miss",
			slog.String("user_key", key),
			slog.String("error", fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err).Error()),
		)
		return nil, false
	}
	if item == nil || item.Data == nil {
		return nil, false
	}
	if s.timeNow().After(item.ExpiresAt) {
		return nil, false
	}
	return item.Data, true
}

// Put はドキュメントを now + ttl の有効期限付きで保存する。
// 失敗はログに記録するのみで呼び出し元には返さない。
func (s *SecondaryCache) Put(ctx context.Context, key string, doc *model.UserDocument) {
	item := &repository.CacheItem{
		UserKey:   key,
		Data:      doc,
		ExpiresAt: s.timeNow().Add(s.ttl),
	}
	if err := s.store.PutItem(ctx, item); err != nil {
		s.metrics.RecordCacheError(metrics.TierSecondary)
		s.logger.Warn("secondary cache put failed, skipping",
			slog.String("user_key", key),
			slog.String("error", fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err).Error()),
		)
	}
}
