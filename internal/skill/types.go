// Package skill は音声アシスタントのリクエストをインテントごとに振り分け、
// 蔵書操作の結果を読み上げ文に変換する。
package skill

// インテント名
const (
	IntentLaunch     = "LaunchRequest"
	IntentAddBook    = "AddBookIntent"
	IntentListBooks  = "ListBooksIntent"
	IntentNextPage   = "NextPageIntent"
	IntentLoanBook   = "LoanBookIntent"
	IntentReturnBook = "ReturnBookIntent"
	IntentSearchBook = "SearchBookIntent"
	IntentQueryLoans = "QueryLoansIntent"
	IntentDeleteBook = "DeleteBookIntent"
	IntentClearCache = "ClearCacheIntent"
	IntentHelp       = "HelpIntent"
	IntentCancel     = "CancelIntent"
	IntentStop       = "StopIntent"
)

// スロット名
const (
	SlotTitle    = "title"
	SlotAuthor   = "author"
	SlotCategory = "category"
	SlotBorrower = "borrower"
	SlotLoanID   = "loan_id"
	SlotFilter   = "filter"
)

// セッション属性のキー。ページング状態はドキュメントではなくセッションに持つ。
const (
	sessionListPage   = "list_page"
	sessionListFilter = "list_filter"
	sessionListAuthor = "list_author"
)

// Request は音声アシスタントから受け取る1リクエスト。
type Request struct {
	UserID  string            `json:"user_id"`
	Intent  string            `json:"intent"`
	Slots   map[string]string `json:"slots,omitempty"`
	Session map[string]string `json:"session,omitempty"`
}

// Response は音声アシスタントに返す読み上げ内容。
// Sessionは次のリクエストでそのまま送り返される。
type Response struct {
	Speech     string            `json:"speech"`
	Reprompt   string            `json:"reprompt,omitempty"`
	Session    map[string]string `json:"session,omitempty"`
	EndSession bool              `json:"end_session"`
}
