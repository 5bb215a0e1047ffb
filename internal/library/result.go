package library

import "github.com/hitoshi/voicelibrary/internal/model"

// Outcome は操作結果の種別。見つからない・重複などは正常な結果として扱い、エラーにはしない。
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeAlreadyLoaned Outcome = "already_loaned"
	OutcomeBookOnLoan    Outcome = "book_on_loan"
)

// NewBook は追加する書籍の入力値。
type NewBook struct {
	Title    string
	Author   string
	Category string
}

// AddResult は書籍追加の結果。重複時のBookは既存の書籍。
type AddResult struct {
	Outcome    Outcome
	Book       model.Book
	TotalBooks int
}

// LoanResult は貸出の結果。
type LoanResult struct {
	Outcome Outcome
	Book    model.Book
	// Loan は作成した貸出。OutcomeAlreadyLoanedの場合は既存の貸出。
	Loan model.Loan
	// Available は処理後に貸出可能な書籍。
	Available   []model.Book
	ActiveLoans int
}

// ReturnResult は返却の結果。
type ReturnResult struct {
	Outcome Outcome
	Loan    model.Loan
	OnTime  bool
	// ActiveLoans は処理後の貸出中一覧。見つからなかった場合の候補提示に使う。
	ActiveLoans []model.Loan
}

// DeleteResult は書籍削除の結果。
type DeleteResult struct {
	Outcome    Outcome
	Book       model.Book
	Loan       model.Loan // OutcomeBookOnLoanの場合の貸出
	TotalBooks int
}

// Filter は一覧の絞り込み条件。
type Filter string

const (
	FilterAll       Filter = "all"
	FilterLoaned    Filter = "loaned"
	FilterAvailable Filter = "available"
)

// ListQuery は書籍一覧の問い合わせ条件。Pageは1始まり。
type ListQuery struct {
	Filter Filter
	Author string
	Page   int
}

// ListResult は書籍一覧の1ページ分。
type ListResult struct {
	Books   []model.Book
	Total   int
	Page    int
	HasMore bool
}

// LoanStatus は貸出中1件の期限状況。
type LoanStatus struct {
	Loan          model.Loan
	DaysRemaining int
	Overdue       bool
	DueToday      bool
	DueSoon       bool
}

// Summary はドキュメントの件数サマリ。
type Summary struct {
	TotalBooks     int
	AvailableBooks int
	ActiveLoans    int
}

// SessionResult はセッション開始時の情報。
type SessionResult struct {
	Summary
	Frequent bool
}
