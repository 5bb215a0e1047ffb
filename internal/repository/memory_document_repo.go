package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hitoshi/voicelibrary/internal/model"
)

// MemoryDocumentRepo はプロセス内メモリを使う永続ストアの代替実装。
// ローカル開発とテスト用であり、プロセス終了でデータは失われる。
// 永続ストアと同じくJSONで保持するため、呼び出し側とデータを共有しない。
type MemoryDocumentRepo struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryDocumentRepo は空のMemoryDocumentRepoを生成する。
func NewMemoryDocumentRepo() *MemoryDocumentRepo {
	return &MemoryDocumentRepo{docs: make(map[string][]byte)}
}

// Read は指定ユーザーのドキュメントを取得する。見つからない場合はnilを返す。
func (r *MemoryDocumentRepo) Read(ctx context.Context, userKey string) (*model.UserDocument, error) {
	r.mu.RLock()
	raw, ok := r.docs[userKey]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	doc := &model.UserDocument{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("failed to decode user document: %w", err)
	}
	return doc, nil
}

// Write はドキュメントを上書き保存する。
func (r *MemoryDocumentRepo) Write(ctx context.Context, userKey string, doc *model.UserDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode user document: %w", err)
	}

	r.mu.Lock()
	r.docs[userKey] = raw
	r.mu.Unlock()
	return nil
}

// compile-time interface check
var _ DocumentStore = (*MemoryDocumentRepo)(nil)
