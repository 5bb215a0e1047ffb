package skill

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"

	"github.com/hitoshi/voicelibrary/internal/library"
	"github.com/hitoshi/voicelibrary/internal/metrics"
	"github.com/hitoshi/voicelibrary/internal/model"
	"github.com/hitoshi/voicelibrary/internal/security"
)

// インテント処理結果のメトリクスラベル
const (
	outcomeOK               = "ok"
	outcomeError            = "error"
	outcomePersistenceError = "persistence_error"
	outcomeUnknownIntent    = "unknown_intent"
)

// Library は蔵書操作のインターフェース。
type Library interface {
	AddBook(ctx context.Context, userKey string, nb library.NewBook) (library.AddResult, error)
	LoanBook(ctx context.Context, userKey, title, borrower string) (library.LoanResult, error)
	ReturnBook(ctx context.Context, userKey, loanID, title string) (library.ReturnResult, error)
	SearchBooks(ctx context.Context, userKey, query string) ([]model.Book, error)
	DeleteBook(ctx context.Context, userKey, title string) (library.DeleteResult, error)
	ListBooks(ctx context.Context, userKey string, q library.ListQuery) (library.ListResult, error)
	ActiveLoans(ctx context.Context, userKey string) ([]library.LoanStatus, error)
	RefreshLibrary(ctx context.Context, userKey string) (library.Summary, error)
	StartSession(ctx context.Context, userKey string) (library.SessionResult, error)
}

// 「わからない」という回答はスロット未指定として扱う。
var unknownAnswers = map[string]struct{}{
	"i don't know":   {},
	"i dont know":    {},
	"don't know":     {},
	"dont know":      {},
	"no idea":        {},
	"not sure":       {},
	"unknown":        {},
	"skip":           {},
	"no":             {},
	"nothing":        {},
	"doesn't matter": {},
}

type handlerFunc func(d *Dispatcher, ctx context.Context, req Request) (Response, error)

var handlers = map[string]handlerFunc{
	IntentLaunch:     (*Dispatcher).launch,
	IntentAddBook:    (*Dispatcher).addBook,
	IntentListBooks:  (*Dispatcher).listBooks,
	IntentNextPage:   (*Dispatcher).nextPage,
	IntentLoanBook:   (*Dispatcher).loanBook,
	IntentReturnBook: (*Dispatcher).returnBook,
	IntentSearchBook: (*Dispatcher).searchBook,
	IntentQueryLoans: (*Dispatcher).queryLoans,
	IntentDeleteBook: (*Dispatcher).deleteBook,
	IntentClearCache: (*Dispatcher).clearCache,
	IntentHelp:       (*Dispatcher).help,
	IntentCancel:     (*Dispatcher).stop,
	IntentStop:       (*Dispatcher).stop,
}

// Dispatcher はインテントを対応する処理に振り分ける。
type Dispatcher struct {
	library   Library
	sanitizer security.SlotSanitizer
	logger    *slog.Logger
	metrics   metrics.MetricsCollector

	mu  sync.Mutex // rand.Randは並行利用に安全でない
	rng *rand.Rand
}

// NewDispatcher はDispatcherを生成する。rngは言い回しの選択に使う。
func NewDispatcher(
	lib Library,
	sanitizer security.SlotSanitizer,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	rng *rand.Rand,
) *Dispatcher {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Dispatcher{
		library:   lib,
		sanitizer: sanitizer,
		logger:    logger,
		metrics:   collector,
		rng:       rng,
	}
}

// Handle はリクエストを処理して応答を返す。
// 処理中のエラーはすべてここで受け止め、セッション状態を破棄して謝罪の応答に変換する。
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	h, ok := handlers[req.Intent]
	if !ok {
		d.metrics.RecordIntent(req.Intent, outcomeUnknownIntent)
		d.logger.Warn("unknown intent",
			slog.String("user_id", req.UserID),
			slog.String("intent", req.Intent),
		)
		return Response{
			Speech:   "Sorry, I didn't understand that. You can say 'help' to hear what I can do.",
			Reprompt: d.pick(whatToDo),
			Session:  req.Session,
		}
	}

	resp, err := h(d, ctx, req)
	if err != nil {
		d.logger.Error("intent failed",
			slog.String("user_id", req.UserID),
			slog.String("intent", req.Intent),
			slog.String("error", err.Error()),
		)
		if model.IsPersistenceError(err) {
			d.metrics.RecordIntent(req.Intent, outcomePersistenceError)
			return Response{
				Speech:   "Sorry, I couldn't save that change to your library. Nothing was recorded, so please try again.",
				Reprompt: d.pick(whatToDo),
				Session:  map[string]string{},
			}
		}
		d.metrics.RecordIntent(req.Intent, outcomeError)
		return Response{
			Speech:   "Sorry, something went wrong on my side. Let's try that again.",
			Reprompt: d.pick(whatToDo),
			Session:  map[string]string{},
		}
	}

	d.metrics.RecordIntent(req.Intent, outcomeOK)
	return resp
}

// slot はサニタイズ済みのスロット値を返す。「わからない」系の回答は空文字列にする。
func (d *Dispatcher) slot(req Request, name string) string {
	v := d.sanitizer.Sanitize(req.Slots[name])
	if _, ok := unknownAnswers[strings.ToLower(v)]; ok {
		return ""
	}
	return v
}

func (d *Dispatcher) pick(phrases []string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return phrases[d.rng.Intn(len(phrases))]
}

// ask は続けて質問する応答を組み立てる。
func (d *Dispatcher) ask(speech, reprompt string, session map[string]string) Response {
	if session == nil {
		session = map[string]string{}
	}
	return Response{Speech: speech, Reprompt: reprompt, Session: session}
}

// done は処理完了後に次の操作を促す応答を組み立てる。
func (d *Dispatcher) done(speech string, session map[string]string) Response {
	return d.ask(speech+" "+d.pick(anythingElse), d.pick(whatToDo), session)
}
