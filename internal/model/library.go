// Package model はドメインモデルを定義する。
package model

import "time"

// AvailabilityState は蔵書の貸出可否を表す。
// 貸出中の記録（ActiveLoans）から導出される値であり、単独で信頼してはならない。
type AvailabilityState string

const (
	// BookAvailable は貸出可能な状態。
	BookAvailable AvailabilityState = "available"
	// BookLoaned は貸出中の状態。
	BookLoaned AvailabilityState = "loaned"
)

// LoanState は貸出記録の状態を表す。
type LoanState string

const (
	// LoanActive は貸出中の記録。
	LoanActive LoanState = "active"
	// LoanReturned は返却済みの記録。
	LoanReturned LoanState = "returned"
)

// ConversationEventSessionStart はセッション開始イベントの種別。
const ConversationEventSessionStart = "session_start"

// 新規ユーザーの設定デフォルト値
const (
	DefaultLoanLimit      = 10
	DefaultLoanPeriodDays = 7
)

// Book は蔵書1冊を表す。
type Book struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	Author            string            `json:"author"`
	Category          string            `json:"category"`
	AddedAt           time.Time         `json:"added_at"`
	LoanCount         int               `json:"loan_count"`
	AvailabilityState AvailabilityState `json:"availability_state"`
}

// Loan は貸出記録を表す。Titleは表示用に蔵書から複製した値。
type Loan struct {
	ID           string     `json:"id"`
	BookID       string     `json:"book_id"`
	Title        string     `json:"title"`
	BorrowerName string     `json:"borrower_name"`
	LoanDate     time.Time  `json:"loan_date"`
	DueDate      time.Time  `json:"due_date"`
	State        LoanState  `json:"state"`
	ReturnDate   *time.Time `json:"return_date,omitempty"`
}

// Statistics はユーザーごとの累計カウンタ。
type Statistics struct {
	TotalBooks   int `json:"total_books"`
	TotalLoans   int `json:"total_loans"`
	TotalReturns int `json:"total_returns"`
}

// ConversationEvent は会話ログの1イベント。
type ConversationEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
}

// DocumentConfig はユーザーごとの貸出設定。
// LoanLimitは保存のみで、貸出時には参照しない。
type DocumentConfig struct {
	LoanLimit      int `json:"loan_limit"`
	LoanPeriodDays int `json:"loan_period_days"`
}

// UserDocument はユーザー1人分の状態をまとめたドキュメント。
// 永続ストアとキャッシュの間では常にこの単位で全体置換される。
type UserDocument struct {
	Books           []Book              `json:"books"`
	ActiveLoans     []Loan              `json:"active_loans"`
	LoanHistory     []Loan              `json:"loan_history"`
	Statistics      Statistics          `json:"statistics"`
	ConversationLog []ConversationEvent `json:"conversation_log"`
	Config          DocumentConfig      `json:"config"`
}

// NewUserDocument は初回アクセス時の空ドキュメントを生成する。
func NewUserDocument() *UserDocument {
	return &UserDocument{
		Books:           []Book{},
		ActiveLoans:     []Loan{},
		LoanHistory:     []Loan{},
		ConversationLog: []ConversationEvent{},
		Config: DocumentConfig{
			LoanLimit:      DefaultLoanLimit,
			LoanPeriodDays: DefaultLoanPeriodDays,
		},
	}
}

// Clone はドキュメントの深いコピーを返す。
// 変更は作業用コピーに対して行い、検証後にのみ保存する。
func (d *UserDocument) Clone() *UserDocument {
	if d == nil {
		return nil
	}
	c := &UserDocument{
		Books:           append([]Book{}, d.Books...),
		ActiveLoans:     cloneLoans(d.ActiveLoans),
		LoanHistory:     cloneLoans(d.LoanHistory),
		Statistics:      d.Statistics,
		ConversationLog: append([]ConversationEvent{}, d.ConversationLog...),
		Config:          d.Config,
	}
	return c
}

// LoanPeriod は貸出期間を返す。未設定の場合はデフォルトの7日。
func (d *UserDocument) LoanPeriod() time.Duration {
	days := d.Config.LoanPeriodDays
	if days <= 0 {
		days = DefaultLoanPeriodDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func cloneLoans(loans []Loan) []Loan {
	out := make([]Loan, len(loans))
	for i, l := range loans {
		if l.ReturnDate != nil {
			rd := *l.ReturnDate
			l.ReturnDate = &rd
		}
		out[i] = l
	}
	return out
}
