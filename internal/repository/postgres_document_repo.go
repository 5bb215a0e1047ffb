package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/voicelibrary/internal/model"
)

// PostgresDocumentRepo はPostgreSQLを使用したユーザードキュメントの永続ストア。
// ドキュメント全体をJSONBカラムに保存する。
type PostgresDocumentRepo struct {
	db *sql.DB
}

// NewPostgresDocumentRepo はPostgresDocumentRepoを生成する。
func NewPostgresDocumentRepo(db *sql.DB) *PostgresDocumentRepo {
	return &PostgresDocumentRepo{db: db}
}

// Read は指定ユーザーのドキュメントを取得する。見つからない場合はnilを返す。
func (r *PostgresDocumentRepo) Read(ctx context.Context, userKey string) (*model.UserDocument, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM user_documents WHERE user_key = $1`,
		userKey,
	).Scan(&raw)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user document: %w", err)
	}

	doc := &model.UserDocument{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("failed to decode user document: %w", err)
	}
	return doc, nil
}

// Write はドキュメントをUPSERTする。
func (r *PostgresDocumentRepo) Write(ctx context.Context, userKey string, doc *model.UserDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode user document: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_documents (user_key, data, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (user_key)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		userKey, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to write user document: %w", err)
	}
	return nil
}

// PingContext は接続の疎通を確認する。ヘルスチェック用。
func (r *PostgresDocumentRepo) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// compile-time interface check
var _ DocumentStore = (*PostgresDocumentRepo)(nil)
