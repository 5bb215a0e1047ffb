// Package userdata はユーザードキュメントの読み書きを、
// 1次キャッシュ（プロセス内）・2次キャッシュ（任意）・永続ストアの3層にわたって管理する。
package userdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/voicelibrary/internal/cache"
	"github.com/hitoshi/voicelibrary/internal/metrics"
	"github.com/hitoshi/voicelibrary/internal/model"
	"github.com/hitoshi/voicelibrary/internal/repository"
)

// DefaultCacheTTL は1次・2次キャッシュのデフォルト有効期限。
const DefaultCacheTTL = 24 * time.Hour

// ManagerConfig はManagerの設定パラメータ。
type ManagerConfig struct {
	// CacheTTL は1次キャッシュに保存するエントリの有効期限。
	CacheTTL time.Duration
}

// Manager はユーザードキュメントの読み書き経路を一元管理する。
// 1次キャッシュはプロセス全体で共有され、Managerが所有する。
type Manager struct {
	memory    *cache.TTLCache
	secondary *SecondaryCache // nilの場合は2次キャッシュ無効
	store     repository.DocumentStore
	config    ManagerConfig
	logger    *slog.Logger
	metrics   metrics.MetricsCollector

	// loads は同一ユーザーに対する同時の永続ストア読み込みを1回にまとめる。
	loads singleflight.Group
}

// NewManager はManagerを生成する。secondaryにnilを渡すと2次キャッシュを使わない。
func NewManager(
	memory *cache.TTLCache,
	secondary *SecondaryCache,
	store repository.DocumentStore,
	config ManagerConfig,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Manager {
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Manager{
		memory:    memory,
		secondary: secondary,
		store:     store,
		config:    config,
		logger:    logger,
		metrics:   collector,
	}
}

// GetUserData はユーザードキュメントを取得する。
// 1次キャッシュ → 2次キャッシュ → 永続ストアの順に参照し、最初のヒットで返す。
// 1次より下の層でヒットした場合は上の層に書き戻す。
// 永続ストアにも存在しない初回ユーザーは初期ドキュメントを生成し、その場で永続化する。
// 同一ユーザーへの同時の永続ストア読み込みは1回にまとめ、各呼び出し元には別のコピーを返す。
func (m *Manager) GetUserData(ctx context.Context, userKey string) (*model.UserDocument, error) {
	if doc, ok := m.memory.Get(userKey); ok {
		m.metrics.RecordCacheHit(metrics.TierMemory)
		m.logger.Debug("cache hit", slog.String("tier", metrics.TierMemory), slog.String("user_key", userKey))
		return doc, nil
	}
	m.metrics.RecordCacheMiss(metrics.TierMemory)

	if m.secondary != nil {
		if doc, ok := m.secondary.Get(ctx, userKey); ok {
			m.metrics.RecordCacheHit(metrics.TierSecondary)
			m.logger.Debug("cache hit", slog.String("tier", metrics.TierSecondary), slog.String("user_key", userKey))
			m.memory.Put(userKey, doc, m.config.CacheTTL)
			return doc, nil
		}
		m.metrics.RecordCacheMiss(metrics.TierSecondary)
	}

	v, err, shared := m.loads.Do(userKey, func() (interface{}, error) {
		return m.loadDurable(ctx, userKey)
	})
	if err != nil {
		return nil, err
	}
	doc := v.(*model.UserDocument)
	if shared {
		doc = doc.Clone()
	}
	return doc, nil
}

// loadDurable は永続ストアから読み込み、両キャッシュに書き戻す。
func (m *Manager) loadDurable(ctx context.Context, userKey string) (*model.UserDocument, error) {
	start := time.Now()
	doc, err := m.store.Read(ctx, userKey)
	m.metrics.RecordStoreLatency("read", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to read user document: %w", err)
	}

	if doc == nil {
		doc = model.NewUserDocument()
		if err := m.write(ctx, userKey, doc); err != nil {
			return nil, err
		}
		m.logger.Info("initialized user document", slog.String("user_key", userKey))
	} else {
		m.metrics.RecordCacheHit(metrics.TierDurable)
	}

	m.fillCaches(ctx, userKey, doc)
	return doc, nil
}

// SaveUserData はドキュメントを永続ストアに書き込み、成功した場合のみ両キャッシュを更新する。
// 書き込みに失敗した場合は*model.PersistenceErrorを返し、キャッシュには触れない。
func (m *Manager) SaveUserData(ctx context.Context, userKey string, doc *model.UserDocument) error {
	if err := m.write(ctx, userKey, doc); err != nil {
		return err
	}
	m.fillCaches(ctx, userKey, doc)
	return nil
}

// InvalidateCache は1次キャッシュのエントリのみを削除する。
// 2次キャッシュのエントリは自身の有効期限で自然に失効する。
func (m *Manager) InvalidateCache(userKey string) {
	m.memory.Invalidate(userKey)
}

func (m *Manager) write(ctx context.Context, userKey string, doc *model.UserDocument) error {
	start := time.Now()
	err := m.store.Write(ctx, userKey, doc)
	m.metrics.RecordStoreLatency("write", time.Since(start))
	if err != nil {
		m.metrics.RecordPersistenceFailure()
		m.logger.Error("failed to persist user document",
			slog.String("user_key", userKey),
			slog.String("error", err.Error()),
		)
		return &model.PersistenceError{UserKey: userKey, Err: err}
	}
	return nil
}

func (m *Manager) fillCaches(ctx context.Context, userKey string, doc *model.UserDocument) {
	m.memory.Put(userKey, doc, m.config.CacheTTL)
	if m.secondary != nil {
		m.secondary.Put(ctx, userKey, doc)
	}
}
