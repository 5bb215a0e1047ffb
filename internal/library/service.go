package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/hitoshi/voicelibrary/internal/model"
)

// 入力値のデフォルト
const (
	DefaultAuthor   = "Unknown"
	DefaultCategory = "Uncategorized"
	DefaultBorrower = "a friend"
	DefaultPageSize = 10
)

// frequentSessionThreshold を超える回数のセッション履歴があるユーザーを常連とみなす。
const frequentSessionThreshold = 5

// dueSoonDays 以内に期限を迎える貸出を「もうすぐ期限」とする。
const dueSoonDays = 2

// ErrTitleRequired はタイトルが空の場合に返される。
var ErrTitleRequired = errors.New("title is required")

// DocumentManager はユーザードキュメントの読み書きを提供する。
type DocumentManager interface {
	GetUserData(ctx context.Context, userKey string) (*model.UserDocument, error)
	SaveUserData(ctx context.Context, userKey string, doc *model.UserDocument) error
	InvalidateCache(userKey string)
}

// Service は蔵書管理の操作を提供する。
// 変更操作はすべて 読込 → 作業コピー → 整合 → 検証・変更 → 整合 → 保存 の順で行い、
// 検証で弾かれた場合は何も保存しない。
type Service struct {
	manager  DocumentManager
	pageSize int
	logger   *slog.Logger
	timeNow  func() time.Time
}

// NewService はServiceを生成する。pageSizeが0以下の場合はDefaultPageSizeを使う。
func NewService(manager DocumentManager, pageSize int, logger *slog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		manager:  manager,
		pageSize: pageSize,
		logger:   logger,
		timeNow:  time.Now,
	}
}

// WithClock は時刻取得関数を差し替える。テスト用。
func (s *Service) WithClock(now func() time.Time) *Service {
	s.timeNow = now
	return s
}

// AddBook は書籍を追加する。タイトルが大文字小文字を無視して一致する書籍があれば重複として何もしない。
func (s *Service) AddBook(ctx context.Context, userKey string, nb NewBook) (AddResult, error) {
	title := strings.TrimSpace(nb.Title)
	if title == "" {
		return AddResult{}, ErrTitleRequired
	}

	doc, err := s.load(ctx, userKey)
	if err != nil {
		return AddResult{}, err
	}

	if i := findBookExactIndex(doc.Books, title); i >= 0 {
		return AddResult{Outcome: OutcomeDuplicate, Book: doc.Books[i], TotalBooks: len(doc.Books)}, nil
	}

	book := model.Book{
		ID:                newBookID(),
		Title:             title,
		Author:            defaultIfBlank(nb.Author, DefaultAuthor),
		Category:          defaultIfBlank(nb.Category, DefaultCategory),
		AddedAt:           s.timeNow(),
		LoanCount:         0,
		AvailabilityState: model.BookAvailable,
	}
	doc.Books = append(doc.Books, book)
	doc.Statistics.TotalBooks++

	if err := s.commit(ctx, userKey, doc); err != nil {
		return AddResult{}, err
	}

	s.logger.Info("book added",
		slog.String("user_id", userKey),
		slog.String("book_id", book.ID),
		slog.Int("total_books", doc.Statistics.TotalBooks),
	)
	return AddResult{Outcome: OutcomeOK, Book: book, TotalBooks: doc.Statistics.TotalBooks}, nil
}

// LoanBook はタイトルの部分一致で見つけた書籍を貸し出す。
func (s *Service) LoanBook(ctx context.Context, userKey, title, borrower string) (LoanResult, error) {
	if strings.TrimSpace(title) == "" {
		return LoanResult{}, ErrTitleRequired
	}

	doc, err := s.load(ctx, userKey)
	if err != nil {
		return LoanResult{}, err
	}

	result := LoanResult{ActiveLoans: len(doc.ActiveLoans)}

	bi := findBookIndex(doc.Books, title)
	if bi < 0 {
		result.Outcome = OutcomeNotFound
		result.Available = availableBooks(doc.Books)
		return result, nil
	}
	result.Book = doc.Books[bi]

	if li := activeLoanIndexForBook(doc.ActiveLoans, doc.Books[bi].ID); li >= 0 {
		result.Outcome = OutcomeAlreadyLoaned
		result.Loan = doc.ActiveLoans[li]
		result.Available = availableBooks(doc.Books)
		return result, nil
	}

	now := s.timeNow()
	loan := model.Loan{
		ID:           newLoanID(now),
		BookID:       doc.Books[bi].ID,
		Title:        doc.Books[bi].Title,
		BorrowerName: defaultIfBlank(borrower, DefaultBorrower),
		LoanDate:     now,
		DueDate:      now.Add(doc.LoanPeriod()),
		State:        model.LoanActive,
	}
	doc.ActiveLoans = append(doc.ActiveLoans, loan)
	doc.Books[bi].LoanCount++
	doc.Statistics.TotalLoans++

	if err := s.commit(ctx, userKey, doc); err != nil {
		return LoanResult{}, err
	}

	s.logger.Info("book loaned",
		slog.String("user_id", userKey),
		slog.String("loan_id", loan.ID),
		slog.String("book_id", loan.BookID),
	)
	result.Outcome = OutcomeOK
	result.Book = doc.Books[bi]
	result.Loan = loan
	result.Available = availableBooks(doc.Books)
	result.ActiveLoans = len(doc.ActiveLoans)
	return result, nil
}

// ReturnBook は貸出IDまたはタイトルで貸出中レコードを探し、返却済みにして履歴へ移す。
func (s *Service) ReturnBook(ctx context.Context, userKey, loanID, title string) (ReturnResult, error) {
	if strings.TrimSpace(loanID) == "" && strings.TrimSpace(title) == "" {
		return ReturnResult{}, ErrTitleRequired
	}

	doc, err := s.load(ctx, userKey)
	if err != nil {
		return ReturnResult{}, err
	}

	li := findActiveLoanIndex(doc.ActiveLoans, loanID, title)
	if li < 0 {
		return ReturnResult{Outcome: OutcomeNotFound, ActiveLoans: doc.ActiveLoans}, nil
	}

	now := s.timeNow()
	loan := doc.ActiveLoans[li]
	doc.ActiveLoans = append(doc.ActiveLoans[:li:li], doc.ActiveLoans[li+1:]...)
	returnedAt := now
	loan.ReturnDate = &returnedAt
	loan.State = model.LoanReturned
	doc.LoanHistory = append(doc.LoanHistory, loan)
	doc.Statistics.TotalReturns++

	if err := s.commit(ctx, userKey, doc); err != nil {
		return ReturnResult{}, err
	}

	onTime := !now.After(loan.DueDate)
	s.logger.Info("book returned",
		slog.String("user_id", userKey),
		slog.String("loan_id", loan.ID),
		slog.Bool("on_time", onTime),
	)
	return ReturnResult{Outcome: OutcomeOK, Loan: loan, OnTime: onTime, ActiveLoans: doc.ActiveLoans}, nil
}

// SearchBooks はタイトルが部分一致する書籍をすべて返す。
func (s *Service) SearchBooks(ctx context.Context, userKey, query string) ([]model.Book, error) {
	doc, err := s.load(ctx, userKey)
	if err != nil {
		return nil, err
	}
	return matchBooks(doc.Books, query), nil
}

// DeleteBook はタイトルが大文字小文字を無視して完全一致する書籍を削除する。
// 貸出中の書籍は削除しない。
func (s *Service) DeleteBook(ctx context.Context, userKey, title string) (DeleteResult, error) {
	if strings.TrimSpace(title) == "" {
		return DeleteResult{}, ErrTitleRequired
	}

	doc, err := s.load(ctx, userKey)
	if err != nil {
		return DeleteResult{}, err
	}

	bi := findBookExactIndex(doc.Books, title)
	if bi < 0 {
		return DeleteResult{Outcome: OutcomeNotFound, TotalBooks: len(doc.Books)}, nil
	}
	book := doc.Books[bi]
	if li := activeLoanIndexForBook(doc.ActiveLoans, book.ID); li >= 0 {
		return DeleteResult{Outcome: OutcomeBookOnLoan, Book: book, Loan: doc.ActiveLoans[li], TotalBooks: len(doc.Books)}, nil
	}

	doc.Books = append(doc.Books[:bi:bi], doc.Books[bi+1:]...)
	doc.Statistics.TotalBooks = len(doc.Books)

	if err := s.commit(ctx, userKey, doc); err != nil {
		return DeleteResult{}, err
	}

	s.logger.Info("book deleted",
		slog.String("user_id", userKey),
		slog.String("book_id", book.ID),
	)
	return DeleteResult{Outcome: OutcomeOK, Book: book, TotalBooks: len(doc.Books)}, nil
}

// ListBooks は条件で絞り込んだ書籍一覧のうち、指定ページを返す。
func (s *Service) ListBooks(ctx context.Context, userKey string, q ListQuery) (ListResult, error) {
	doc, err := s.load(ctx, userKey)
	if err != nil {
		return ListResult{}, err
	}

	var filtered []model.Book
	for _, b := range doc.Books {
		switch q.Filter {
		case FilterLoaned:
			if b.AvailabilityState != model.BookLoaned {
				continue
			}
		case FilterAvailable:
			if b.AvailabilityState != model.BookAvailable {
				continue
			}
		}
		if q.Author != "" && !containsEither(b.Author, q.Author) {
			continue
		}
		filtered = append(filtered, b)
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * s.pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + s.pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	return ListResult{
		Books:   filtered[start:end],
		Total:   len(filtered),
		Page:    page,
		HasMore: end < len(filtered),
	}, nil
}

// ActiveLoans は貸出中の一覧を期限状況付きで返す。
func (s *Service) ActiveLoans(ctx context.Context, userKey string) ([]LoanStatus, error) {
	doc, err := s.load(ctx, userKey)
	if err != nil {
		return nil, err
	}

	now := s.timeNow()
	statuses := make([]LoanStatus, 0, len(doc.ActiveLoans))
	for _, loan := range doc.ActiveLoans {
		days := int(math.Floor(loan.DueDate.Sub(now).Hours() / 24))
		statuses = append(statuses, LoanStatus{
			Loan:          loan,
			DaysRemaining: days,
			Overdue:       days < 0,
			DueToday:      days == 0,
			DueSoon:       days > 0 && days <= dueSoonDays,
		})
	}
	return statuses, nil
}

// RefreshLibrary は1次キャッシュを破棄してドキュメントを読み直し、整合した状態で保存し直す。
func (s *Service) RefreshLibrary(ctx context.Context, userKey string) (Summary, error) {
	s.manager.InvalidateCache(userKey)

	doc, err := s.load(ctx, userKey)
	if err != nil {
		return Summary{}, err
	}
	if err := s.commit(ctx, userKey, doc); err != nil {
		return Summary{}, err
	}

	s.logger.Info("library refreshed", slog.String("user_id", userKey))
	return summarize(doc), nil
}

// StartSession はセッション開始イベントを会話ログに追記し、常連かどうかを返す。
func (s *Service) StartSession(ctx context.Context, userKey string) (SessionResult, error) {
	doc, err := s.load(ctx, userKey)
	if err != nil {
		return SessionResult{}, err
	}

	frequent := len(doc.ConversationLog) > frequentSessionThreshold
	doc.ConversationLog = append(doc.ConversationLog, model.ConversationEvent{
		Timestamp: s.timeNow(),
		Kind:      model.ConversationEventSessionStart,
	})

	if err := s.commit(ctx, userKey, doc); err != nil {
		return SessionResult{}, err
	}
	return SessionResult{Summary: summarize(doc), Frequent: frequent}, nil
}

// load はドキュメントを取得し、整合済みの作業コピーを返す。
func (s *Service) load(ctx context.Context, userKey string) (*model.UserDocument, error) {
	doc, err := s.manager.GetUserData(ctx, userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}
	return Reconcile(doc.Clone()), nil
}

func (s *Service) commit(ctx context.Context, userKey string, doc *model.UserDocument) error {
	Reconcile(doc)
	if err := s.manager.SaveUserData(ctx, userKey, doc); err != nil {
		return fmt.Errorf("failed to save library: %w", err)
	}
	return nil
}

func summarize(doc *model.UserDocument) Summary {
	return Summary{
		TotalBooks:     len(doc.Books),
		AvailableBooks: len(availableBooks(doc.Books)),
		ActiveLoans:    len(doc.ActiveLoans),
	}
}

func defaultIfBlank(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
