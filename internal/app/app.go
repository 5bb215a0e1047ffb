package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/voicelibrary/internal/cache"
	"github.com/hitoshi/voicelibrary/internal/config"
	"github.com/hitoshi/voicelibrary/internal/database"
	"github.com/hitoshi/voicelibrary/internal/handler"
	"github.com/hitoshi/voicelibrary/internal/library"
	"github.com/hitoshi/voicelibrary/internal/logger"
	"github.com/hitoshi/voicelibrary/internal/metrics"
	"github.com/hitoshi/voicelibrary/internal/middleware"
	"github.com/hitoshi/voicelibrary/internal/repository"
	"github.com/hitoshi/voicelibrary/internal/security"
	"github.com/hitoshi/voicelibrary/internal/skill"
	"github.com/hitoshi/voicelibrary/internal/userdata"
	"github.com/hitoshi/voicelibrary/internal/worker/cleanup"
)

// errDatabaseRequired はDBを必要とするサブコマンドでDATABASE_URLが未設定の場合のエラー。
var errDatabaseRequired = errors.New("DATABASE_URL is required for this command")

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ったJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. 設定読み込み前のエラーも出力できるよう、まずINFOレベルで初期化する
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを作り直す
	l := logger.SetupDefault(w, cfg.SlogLevel())
	return cfg, l, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store_backend", cfg.StoreBackend),
		slog.Bool("secondary_cache", cfg.EnableSecondaryCache),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, l)
	case CommandMigrate:
		return runMigrate(cfg, l)
	default:
		return runServe(ctx, cfg, l)
	}
}

// components はserveモードで組み立てた依存関係一式。
type components struct {
	db          *sql.DB
	rateLimiter *middleware.RateLimiter
	handler     http.Handler
}

// Close は保持しているリソースを解放する。
func (c *components) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
	if c.db != nil {
		c.db.Close()
	}
}

// buildComponents は設定に従ってストア、キャッシュ、サービス、ルーターをワイヤリングする。
// PostgreSQLを使う構成ではDB疎通を確認してから返す。
func buildComponents(ctx context.Context, cfg *config.Config, l *slog.Logger) (*components, error) {
	c := &components{}

	// 1. DB接続（durableストアまたは二次キャッシュがPostgreSQLの場合のみ）
	needsDB := cfg.StoreBackend == config.StoreBackendPostgres || cfg.EnableSecondaryCache
	if needsDB {
		db, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.db = db
		l.Info("database connection established")
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. durableストア
	var (
		documents repository.DocumentStore
		health    handler.HealthChecker
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		documents = repository.NewMemoryDocumentRepo()
		l.Warn("using in-memory document store: data is lost on restart")
	default:
		repo := repository.NewPostgresDocumentRepo(c.db)
		documents = repo
		health = repo
	}

	// 4. 二次キャッシュ（無効時はnil）
	var secondary *userdata.SecondaryCache
	if cfg.EnableSecondaryCache {
		secondary = userdata.NewSecondaryCache(
			repository.NewPostgresCacheItemRepo(c.db), cfg.CacheTTL(), l, collector,
		)
	}

	// 5. ドメインサービス
	manager := userdata.NewManager(
		cache.NewTTLCache(), secondary, documents,
		userdata.ManagerConfig{CacheTTL: cfg.CacheTTL()},
		l, collector,
	)
	libraryService := library.NewService(manager, cfg.PageSize, l)
	dispatcher := skill.NewDispatcher(
		libraryService,
		security.NewSlotSanitizer(),
		l,
		collector,
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)

	// 6. ルーター
	c.rateLimiter = middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitPerMinute), l)
	c.handler = handler.NewRouter(&handler.RouterDeps{
		Dispatcher:    dispatcher,
		RateLimiter:   c.rateLimiter,
		MaxBodyBytes:  middleware.DefaultMaxBodyBytes,
		Logger:        l,
		HealthChecker: health,
		Gatherer:      reg,
	})

	return c, nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	c, err := buildComponents(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer c.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      c.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	l.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 二次キャッシュの期限切れ行をCACHE_CLEANUP_SCHEDULEに従って削除し続ける。
func runWorker(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errDatabaseRequired
	}

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	l.Info("database connection established (worker)")

	job := cleanup.NewCleanupJob(repository.NewPostgresCacheItemRepo(db), l)
	scheduler := cleanup.NewScheduler(job, l)

	if err := scheduler.Start(ctx, cfg.CacheCleanupSchedule); err != nil {
		return err
	}

	l.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, l *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errDatabaseRequired
	}

	l.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	l.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
