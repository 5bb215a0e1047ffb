package skill

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/voicelibrary/internal/library"
	"github.com/hitoshi/voicelibrary/internal/model"
)

// maxSuggestions は候補として読み上げる書名の最大数。
const maxSuggestions = 3

func (d *Dispatcher) launch(ctx context.Context, req Request) (Response, error) {
	res, err := d.library.StartSession(ctx, req.UserID)
	if err != nil {
		return Response{}, err
	}

	var speech string
	switch {
	case res.Frequent && res.TotalBooks > 0:
		speech = fmt.Sprintf("Welcome back! You have %s, %d of them on loan.",
			plural(res.TotalBooks, "book", "books"), res.ActiveLoans)
	case res.TotalBooks > 0:
		speech = fmt.Sprintf("Hi again! Your library has %s.", plural(res.TotalBooks, "book", "books"))
	default:
		speech = "Welcome to your personal library! I can keep track of your books and who you lend them to. Start by adding a book."
	}
	return d.ask(speech+" "+d.pick(whatToDo), d.pick(whatToDo), nil), nil
}

func (d *Dispatcher) addBook(ctx context.Context, req Request) (Response, error) {
	title := d.slot(req, SlotTitle)
	if title == "" {
		return d.ask("Sure! What's the title of the book you want to add?", "What's the title?", req.Session), nil
	}

	res, err := d.library.AddBook(ctx, req.UserID, library.NewBook{
		Title:    title,
		Author:   d.slot(req, SlotAuthor),
		Category: d.slot(req, SlotCategory),
	})
	if err != nil {
		return Response{}, err
	}

	if res.Outcome == library.OutcomeDuplicate {
		return d.done(fmt.Sprintf("You already have '%s' in your library.", res.Book.Title), nil), nil
	}

	speech := fmt.Sprintf("%s I've added '%s'", d.pick(confirmations), res.Book.Title)
	if res.Book.Author != library.DefaultAuthor {
		speech += " by " + res.Book.Author
	}
	speech += fmt.Sprintf(". You now have %s.", plural(res.TotalBooks, "book", "books"))
	return d.done(speech, nil), nil
}

func (d *Dispatcher) listBooks(ctx context.Context, req Request) (Response, error) {
	q := library.ListQuery{
		Filter: parseFilter(d.slot(req, SlotFilter)),
		Author: d.slot(req, SlotAuthor),
		Page:   1,
	}
	return d.listPage(ctx, req, q)
}

func (d *Dispatcher) nextPage(ctx context.Context, req Request) (Response, error) {
	page, err := strconv.Atoi(req.Session[sessionListPage])
	if err != nil || page < 1 {
		return d.ask("There's no list in progress. Say 'list my books' to start one.", d.pick(whatToDo), nil), nil
	}
	q := library.ListQuery{
		Filter: library.Filter(req.Session[sessionListFilter]),
		Author: req.Session[sessionListAuthor],
		Page:   page + 1,
	}
	return d.listPage(ctx, req, q)
}

func (d *Dispatcher) listPage(ctx context.Context, req Request, q library.ListQuery) (Response, error) {
	res, err := d.library.ListBooks(ctx, req.UserID, q)
	if err != nil {
		return Response{}, err
	}

	if res.Total == 0 {
		speech := "You don't have any books yet."
		if q.Filter == library.FilterLoaned || q.Filter == library.FilterAvailable || q.Author != "" {
			speech = "I didn't find any books matching that."
		}
		return d.done(speech, nil), nil
	}
	if len(res.Books) == 0 {
		return d.done("That's all the books I have.", nil), nil
	}

	titles := make([]string, len(res.Books))
	for i, b := range res.Books {
		titles[i] = b.Title
	}

	var speech string
	if res.Page == 1 {
		speech = fmt.Sprintf("You have %s%s. ", plural(res.Total, "book", "books"), describeFilter(q))
	}
	speech += fmt.Sprintf("Here they are: %s.", joinTitles(titles))

	if !res.HasMore {
		return d.done(speech, nil), nil
	}
	session := map[string]string{
		sessionListPage:   strconv.Itoa(res.Page),
		sessionListFilter: string(q.Filter),
		sessionListAuthor: q.Author,
	}
	return d.ask(speech+" Say 'next' to hear more.", "Would you like to hear more?", session), nil
}

func (d *Dispatcher) loanBook(ctx context.Context, req Request) (Response, error) {
	title := d.slot(req, SlotTitle)
	if title == "" {
		return d.ask("Of course! Which book do you want to lend?", "What's the title of the book?", req.Session), nil
	}
	borrower := d.slot(req, SlotBorrower)

	res, err := d.library.LoanBook(ctx, req.UserID, title, borrower)
	if err != nil {
		return Response{}, err
	}

	switch res.Outcome {
	case library.OutcomeNotFound:
		speech := fmt.Sprintf("Hmm, I can't find '%s' in your library.", title)
		switch {
		case len(res.Available) > 0:
			speech += fmt.Sprintf(" You have available: %s. Which one do you want to lend?", joinTitles(bookTitles(res.Available, maxSuggestions)))
		case res.ActiveLoans > 0:
			speech += " All your books are on loan right now."
		default:
			speech += " Your library is still empty."
		}
		return d.ask(speech, "Which book do you want to lend?", nil), nil

	case library.OutcomeAlreadyLoaned:
		speech := fmt.Sprintf("'%s' is already on loan to %s.", res.Book.Title, res.Loan.BorrowerName)
		if len(res.Available) > 0 {
			speech += fmt.Sprintf(" You could lend %s instead.", joinTitles(bookTitles(res.Available, maxSuggestions)))
		}
		return d.ask(speech, "Which other book do you want to lend?", nil), nil
	}

	speech := fmt.Sprintf("%s I've recorded the loan of '%s'", d.pick(confirmations), res.Loan.Title)
	if borrower != "" {
		speech += " to " + res.Loan.BorrowerName
	}
	speech += fmt.Sprintf(". It's due back on %s.", formatDue(res.Loan.DueDate))
	if n := len(res.Available); n > 0 {
		speech += fmt.Sprintf(" You have %s left to lend.", plural(n, "book", "books"))
	} else {
		speech += " That was your last available book."
	}
	return d.done(speech, nil), nil
}

func (d *Dispatcher) returnBook(ctx context.Context, req Request) (Response, error) {
	title := d.slot(req, SlotTitle)
	loanID := d.slot(req, SlotLoanID)
	if title == "" && loanID == "" {
		return d.ask("Great! Which book was returned?", "What's the title of the book?", req.Session), nil
	}

	res, err := d.library.ReturnBook(ctx, req.UserID, loanID, title)
	if err != nil {
		return Response{}, err
	}

	if res.Outcome == library.OutcomeNotFound {
		switch len(res.ActiveLoans) {
		case 0:
			return d.done("You don't have any books on loan right now. Everything is on the shelf.", nil), nil
		case 1:
			l := res.ActiveLoans[0]
			return d.ask(fmt.Sprintf("I can't find that loan. You only have '%s' lent to %s. Is that the one?", l.Title, l.BorrowerName),
				"Which book do you want to return?", nil), nil
		default:
			return d.ask(fmt.Sprintf("I can't find that loan. You have on loan: %s. Which one is it?", joinTitles(loanTitles(res.ActiveLoans, maxSuggestions))),
				"Which book do you want to return?", nil), nil
		}
	}

	speech := fmt.Sprintf("%s I've recorded the return of '%s'.", d.pick(confirmations), res.Loan.Title)
	if res.OnTime {
		speech += " It came back on time!"
	} else {
		speech += " It was a little late, but no problem."
	}
	if n := len(res.ActiveLoans); n > 0 {
		speech += fmt.Sprintf(" You still have %s on loan.", plural(n, "book", "books"))
	}
	return d.done(speech, nil), nil
}

func (d *Dispatcher) searchBook(ctx context.Context, req Request) (Response, error) {
	title := d.slot(req, SlotTitle)
	if title == "" {
		return d.ask("Which book are you looking for?", "What's the title?", req.Session), nil
	}

	books, err := d.library.SearchBooks(ctx, req.UserID, title)
	if err != nil {
		return Response{}, err
	}

	switch len(books) {
	case 0:
		return d.done(fmt.Sprintf("I couldn't find any book matching '%s'.", title), nil), nil
	case 1:
		b := books[0]
		state := "It's available."
		if b.AvailabilityState == model.BookLoaned {
			state = "It's on loan right now."
		}
		speech := fmt.Sprintf("I found '%s'", b.Title)
		if b.Author != library.DefaultAuthor {
			speech += " by " + b.Author
		}
		return d.done(speech+". "+state, nil), nil
	default:
		return d.done(fmt.Sprintf("I found %s: %s.", plural(len(books), "book", "books"), joinTitles(bookTitles(books, len(books)))), nil), nil
	}
}

func (d *Dispatcher) queryLoans(ctx context.Context, req Request) (Response, error) {
	loans, err := d.library.ActiveLoans(ctx, req.UserID)
	if err != nil {
		return Response{}, err
	}
	if len(loans) == 0 {
		return d.done("You don't have any books on loan. Everything is on the shelf.", nil), nil
	}

	details := make([]string, len(loans))
	for i, l := range loans {
		detail := fmt.Sprintf("'%s' with %s", l.Loan.Title, l.Loan.BorrowerName)
		switch {
		case l.Overdue:
			detail += fmt.Sprintf(", overdue by %s", plural(-l.DaysRemaining, "day", "days"))
		case l.DueToday:
			detail += ", due today"
		case l.DueSoon:
			detail += fmt.Sprintf(", due in %s", plural(l.DaysRemaining, "day", "days"))
		default:
			detail += ", due on " + formatDue(l.Loan.DueDate)
		}
		details[i] = detail
	}
	speech := fmt.Sprintf("You have %s on loan: %s.", plural(len(loans), "book", "books"), strings.Join(details, "; "))
	return d.done(speech, nil), nil
}

func (d *Dispatcher) deleteBook(ctx context.Context, req Request) (Response, error) {
	title := d.slot(req, SlotTitle)
	if title == "" {
		return d.ask("Which book do you want to remove?", "What's the title?", req.Session), nil
	}

	res, err := d.library.DeleteBook(ctx, req.UserID, title)
	if err != nil {
		return Response{}, err
	}

	switch res.Outcome {
	case library.OutcomeNotFound:
		return d.ask(fmt.Sprintf("I can't find a book called '%s'. Please say the exact title.", title), "Which book do you want to remove?", nil), nil
	case library.OutcomeBookOnLoan:
		return d.done(fmt.Sprintf("'%s' is on loan to %s. Record the return before removing it.", res.Book.Title, res.Loan.BorrowerName), nil), nil
	}
	return d.done(fmt.Sprintf("%s I've removed '%s'. You now have %s.", d.pick(confirmations), res.Book.Title, plural(res.TotalBooks, "book", "books")), nil), nil
}

func (d *Dispatcher) clearCache(ctx context.Context, req Request) (Response, error) {
	sum, err := d.library.RefreshLibrary(ctx, req.UserID)
	if err != nil {
		return Response{}, err
	}
	speech := fmt.Sprintf("I've refreshed your library. You have %s: %d available and %d on loan.",
		plural(sum.TotalBooks, "book", "books"), sum.AvailableBooks, sum.ActiveLoans)
	return d.done(speech, nil), nil
}

func (d *Dispatcher) help(ctx context.Context, req Request) (Response, error) {
	speech := "You can say things like 'add Dune by Frank Herbert', 'lend Dune to Alex', " +
		"'Alex returned Dune', 'list my books', 'which books are on loan' or 'search for Dune'."
	return d.ask(speech+" "+d.pick(whatToDo), d.pick(whatToDo), req.Session), nil
}

func (d *Dispatcher) stop(ctx context.Context, req Request) (Response, error) {
	return Response{Speech: d.pick(goodbyes), EndSession: true}, nil
}

// parseFilter は絞り込み条件の発話を正規化する。
func parseFilter(v string) library.Filter {
	switch strings.ToLower(v) {
	case "loaned", "on loan", "lent", "borrowed", "out":
		return library.FilterLoaned
	case "available", "in", "on the shelf", "home":
		return library.FilterAvailable
	default:
		return library.FilterAll
	}
}

func describeFilter(q library.ListQuery) string {
	var s string
	switch q.Filter {
	case library.FilterLoaned:
		s = " on loan"
	case library.FilterAvailable:
		s = " available"
	}
	if q.Author != "" {
		s += " by " + q.Author
	}
	return s
}

func bookTitles(books []model.Book, limit int) []string {
	if len(books) > limit {
		books = books[:limit]
	}
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}

func loanTitles(loans []model.Loan, limit int) []string {
	if len(loans) > limit {
		loans = loans[:limit]
	}
	out := make([]string, len(loans))
	for i, l := range loans {
		out[i] = l.Title
	}
	return out
}
