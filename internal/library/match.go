package library

import (
	"strings"

	"github.com/hitoshi/voicelibrary/internal/model"
)

// containsEither は大文字小文字を無視して、どちらかがもう一方を含むかを判定する。
// 空のクエリは何にも一致しない。
func containsEither(value, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	v := strings.ToLower(value)
	if v == "" {
		return false
	}
	return strings.Contains(v, q) || strings.Contains(q, v)
}

// findBookIndex はタイトルが部分一致する最初の書籍のインデックスを返す。見つからなければ-1。
func findBookIndex(books []model.Book, title string) int {
	for i := range books {
		if containsEither(books[i].Title, title) {
			return i
		}
	}
	return -1
}

// findBookExactIndex はタイトルが大文字小文字を無視して完全一致する書籍のインデックスを返す。
func findBookExactIndex(books []model.Book, title string) int {
	t := strings.TrimSpace(title)
	for i := range books {
		if strings.EqualFold(strings.TrimSpace(books[i].Title), t) {
			return i
		}
	}
	return -1
}

// matchBooks はタイトルが部分一致する全書籍を返す。
func matchBooks(books []model.Book, title string) []model.Book {
	var out []model.Book
	for _, b := range books {
		if containsEither(b.Title, title) {
			out = append(out, b)
		}
	}
	return out
}

// activeLoanIndexForBook は書籍IDに対応する貸出中レコードのインデックスを返す。
func activeLoanIndexForBook(loans []model.Loan, bookID string) int {
	for i := range loans {
		if loans[i].BookID == bookID {
			return i
		}
	}
	return -1
}

// findActiveLoanIndex は貸出IDで探し、見つからなければ貸出タイトルの部分一致で探す。
func findActiveLoanIndex(loans []model.Loan, loanID, title string) int {
	if id := strings.TrimSpace(loanID); id != "" {
		for i := range loans {
			if loans[i].ID == id {
				return i
			}
		}
	}
	q := strings.ToLower(strings.TrimSpace(title))
	if q == "" {
		return -1
	}
	for i := range loans {
		if strings.Contains(strings.ToLower(loans[i].Title), q) {
			return i
		}
	}
	return -1
}

func availableBooks(books []model.Book) []model.Book {
	var out []model.Book
	for _, b := range books {
		if b.AvailabilityState == model.BookAvailable {
			out = append(out, b)
		}
	}
	return out
}
