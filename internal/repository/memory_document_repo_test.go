package repository

import (
	"context"
	"testing"

	"github.com/hitoshi/voicelibrary/internal/model"
)

func TestMemoryDocumentRepo_Read_NotFound(t *testing.T) {
	repo := NewMemoryDocumentRepo()

	doc, err := repo.Read(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if doc != nil {
		t.Errorf("expected nil document, got %+v", doc)
	}
}

func TestMemoryDocumentRepo_WriteThenRead(t *testing.T) {
	repo := NewMemoryDocumentRepo()
	ctx := context.Background()

	doc := model.NewUserDocument()
	doc.Books = append(doc.Books, model.Book{ID: "b1", Title: "Dune", AvailabilityState: model.BookAvailable})
	doc.Statistics.TotalBooks = 1

	if err := repo.Write(ctx, "user-1", doc); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	got, err := repo.Read(ctx, "user-1")
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if got == nil || len(got.Books) != 1 || got.Books[0].Title != "Dune" {
		t.Fatalf("unexpected document: %+v", got)
	}
	if got.Statistics.TotalBooks != 1 {
		t.Errorf("TotalBooks = %d, want 1", got.Statistics.TotalBooks)
	}
	if got.Config.LoanPeriodDays != 7 {
		t.Errorf("LoanPeriodDays = %d, want 7", got.Config.LoanPeriodDays)
	}
}

// TestMemoryDocumentRepo_DoesNotShareState は保存後の呼び出し側の変更がストアに影響しないことを検証する。
func TestMemoryDocumentRepo_DoesNotShareState(t *testing.T) {
	repo := NewMemoryDocumentRepo()
	ctx := context.Background()

	doc := model.NewUserDocument()
	doc.Books = append(doc.Books, model.Book{ID: "b1", Title: "Dune"})
	if err := repo.Write(ctx, "user-1", doc); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	doc.Books[0].Title = "mutated"

	got, _ := repo.Read(ctx, "user-1")
	if got.Books[0].Title != "Dune" {
		t.Errorf("title = %q, want %q", got.Books[0].Title, "Dune")
	}
}

func TestMemoryDocumentRepo_ImplementsInterface(t *testing.T) {
	var _ DocumentStore = (*MemoryDocumentRepo)(nil)
}
