// Package library は蔵書・貸出・返却の操作と、ドキュメントの状態整合処理を提供する。
package library

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/voicelibrary/internal/model"
)

// newShortID はUUIDの先頭8文字を返す。
func newShortID() string {
	return uuid.NewString()[:8]
}

// newBookID は書籍IDの生成関数。テストで差し替える。
var newBookID = newShortID

// newLoanID は LOAN-YYYYMMDD-xxxxxxxx 形式の貸出IDを生成する。
func newLoanID(now time.Time) string {
	return fmt.Sprintf("LOAN-%s-%s", now.Format("20060102"), newShortID())
}

// Reconcile はドキュメントの書籍状態を貸出中リストから導出し直す。
// IDのない書籍にはIDを採番し、active_loansに含まれる書籍をloaned、それ以外をavailableにする。
// loan_historyとstatisticsには触れない。何度呼んでも結果は同じ。
func Reconcile(doc *model.UserDocument) *model.UserDocument {
	if doc == nil {
		return nil
	}

	for i := range doc.Books {
		if strings.TrimSpace(doc.Books[i].ID) == "" {
			doc.Books[i].ID = newBookID()
		}
	}

	loaned := make(map[string]struct{}, len(doc.ActiveLoans))
	for _, loan := range doc.ActiveLoans {
		if loan.BookID != "" {
			loaned[loan.BookID] = struct{}{}
		}
	}

	for i := range doc.Books {
		if _, ok := loaned[doc.Books[i].ID]; ok {
			doc.Books[i].AvailabilityState = model.BookLoaned
		} else {
			doc.Books[i].AvailabilityState = model.BookAvailable
		}
	}
	return doc
}
