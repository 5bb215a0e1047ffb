package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockDeleter はExpiredCacheItemDeleterのモック実装。
type mockDeleter struct {
	mu       sync.Mutex
	deleteFn func(ctx context.Context, now time.Time) (int64, error)
	calls    int
	lastNow  time.Time
}

func (m *mockDeleter) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	m.calls++
	m.lastNow = now
	m.mu.Unlock()
	if m.deleteFn != nil {
		return m.deleteFn(ctx, now)
	}
	return 0, nil
}

func (m *mockDeleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// findLogField はJSONログ行から指定キーを持つ最初のエントリの値を返す。
func findLogField(buf *bytes.Buffer, key string) (interface{}, bool) {
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if v, ok := entry[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func TestCleanupJob_Run_PassesCurrentTime(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockDeleter{}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	job.timeNow = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	if mock.callCount() != 1 {
		t.Fatalf("DeleteExpired 呼び出し回数 = %d, want 1", mock.callCount())
	}
	if !mock.lastNow.Equal(fixed) {
		t.Errorf("DeleteExpired now = %v, want %v", mock.lastNow, fixed)
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockDeleter{
		deleteFn: func(ctx context.Context, now time.Time) (int64, error) {
			return 42, nil
		},
	}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	_ = job.Run(context.Background())

	msg, _ := findLogField(&buf, "msg")
	if msg != "secondary cache cleanup completed" {
		t.Errorf("msg = %v, want %q", msg, "secondary cache cleanup completed")
	}
	count, ok := findLogField(&buf, "deleted_count")
	if !ok || count != float64(42) {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
	if _, ok := findLogField(&buf, "duration_ms"); !ok {
		t.Errorf("ログに duration_ms が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockDeleter{}, newTestLogger(&buf))

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
	}

	count, ok := findLogField(&buf, "deleted_count")
	if !ok || count != float64(0) {
		t.Errorf("0件削除時にもログに deleted_count=0 が記録されるべき。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnStoreFailure(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockDeleter{
		deleteFn: func(ctx context.Context, now time.Time) (int64, error) {
			return 0, sql.ErrConnDone
		},
	}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("ストアエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), `"msg":"secondary cache cleanup failed"`) {
		t.Errorf("失敗時のログメッセージが期待と異なる。ログ出力: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestScheduler_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := &mockDeleter{
		deleteFn: func(_ context.Context, now time.Time) (int64, error) {
			cancel()
			return 1, nil
		},
	}
	s := NewScheduler(NewCleanupJob(mock, newTestLogger(&buf)), newTestLogger(&buf))

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, "@hourly") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() がエラーを返した: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() がキャンセル後に戻らなかった")
	}

	if mock.callCount() != 1 {
		t.Errorf("DeleteExpired 呼び出し回数 = %d, want 1", mock.callCount())
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockDeleter{}
	s := NewScheduler(NewCleanupJob(mock, newTestLogger(&buf)), newTestLogger(&buf))

	err := s.Start(context.Background(), "every hour")
	if err == nil {
		t.Fatal("不正なスケジュールでエラーが返るべき")
	}
	if mock.callCount() != 0 {
		t.Errorf("不正なスケジュールではジョブを実行しないこと: calls = %d", mock.callCount())
	}
}

func TestScheduler_Start_SkipsRunWhenAlreadyCancelled(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockDeleter{}
	s := NewScheduler(NewCleanupJob(mock, newTestLogger(&buf)), newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Start(ctx, "@hourly"); err != nil {
		t.Fatalf("Start() がエラーを返した: %v", err)
	}
	if mock.callCount() != 0 {
		t.Errorf("キャンセル済みコンテキストではジョブを実行しないこと: calls = %d", mock.callCount())
	}
}
