package library

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"apsconnect/internal/apperr"
)

// mockStore mirrors the repository's atomicity contract: the copy count
// mutates under one lock together with the transaction row, exactly like
// the conditional UPDATEs inside a database transaction.
type mockStore struct {
	mu         sync.Mutex
	books      map[string]*Book
	loans      map[string]*Transaction
	finePerDay int
}

func newMockStore() *mockStore {
	return &mockStore{
		books:      make(map[string]*Book),
		loans:      make(map[string]*Transaction),
		finePerDay: 5,
	}
}

func (m *mockStore) InsertBook(_ context.Context, b Book) (Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.AvailableCopies = b.TotalCopies
	b.CreatedAt = time.Now()
	m.books[b.ID] = &b
	return b, nil
}

func (m *mockStore) GetBook(_ context.Context, id string) (Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[id]; ok {
		return *b, nil
	}
	return Book{}, apperr.New(apperr.NotFound, "book %s not found", id)
}

func (m *mockStore) ListBooks(_ context.Context) ([]Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Book
	for _, b := range m.books {
		out = append(out, *b)
	}
	return out, nil
}

func (m *mockStore) Issue(_ context.Context, bookID, studentID string, dueDate time.Time) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[bookID]
	if !ok {
		return Transaction{}, apperr.New(apperr.NotFound, "book %s not found", bookID)
	}
	if b.AvailableCopies < 1 {
		return Transaction{}, apperr.New(apperr.Conflict, "no copies available")
	}
	b.AvailableCopies--
	loan := Transaction{
		ID: uuid.NewString(), BookID: bookID, StudentID: studentID,
		IssuedAt: time.Now(), DueDate: dueDate, Status: StatusIssued,
	}
	m.loans[loan.ID] = &loan
	return loan, nil
}

func (m *mockStore) Return(_ context.Context, txID string, returnedAt time.Time) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[txID]
	if !ok {
		return Transaction{}, apperr.New(apperr.NotFound, "transaction %s not found", txID)
	}
	if loan.Status == StatusReturned {
		return Transaction{}, apperr.New(apperr.Conflict, "transaction already returned")
	}
	loan.Status = StatusReturned
	loan.FineAmount = OverdueFine(loan.DueDate, returnedAt, m.finePerDay)
	loan.ReturnedAt = &returnedAt
	if b, ok := m.books[loan.BookID]; ok && b.AvailableCopies < b.TotalCopies {
		b.AvailableCopies++
	}
	return *loan, nil
}

func (m *mockStore) ListTransactions(_ context.Context, studentID string) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transaction
	for _, loan := range m.loans {
		if loan.StudentID == studentID {
			out = append(out, *loan)
		}
	}
	return out, nil
}

func (m *mockStore) snapshot(t *testing.T, bookID string) Book {
	t.Helper()
	b, err := m.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	return b
}

func futureDue() time.Time { return time.Now().Add(7 * 24 * time.Hour) }

// ── Tests ──

func TestIssueValidation(t *testing.T) {
	svc := NewService(newMockStore(), nil)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "stu-1", "", futureDue())
	require.True(t, apperr.IsKind(err, apperr.BadRequest))

	_, err = svc.Issue(ctx, "stu-1", "book-1", time.Now().Add(-time.Hour))
	require.True(t, apperr.IsKind(err, apperr.BadRequest))

	_, err = svc.Issue(ctx, "stu-1", "missing", futureDue())
	require.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestIssueAndReturnRoundTrip(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	book, err := svc.AddBook(ctx, Book{Title: "SICP", Author: "Abelson", TotalCopies: 2})
	require.NoError(t, err)
	require.Equal(t, 2, book.AvailableCopies)

	loan, err := svc.Issue(ctx, "stu-1", book.ID, futureDue())
	require.NoError(t, err)
	require.Equal(t, StatusIssued, loan.Status)
	require.Equal(t, 1, store.snapshot(t, book.ID).AvailableCopies)

	returned, err := svc.Return(ctx, loan.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, returned.Status)
	require.Equal(t, 0, returned.FineAmount)
	require.Equal(t, 2, store.snapshot(t, book.ID).AvailableCopies)
}

func TestDoubleReturnConflictsWithoutDoubleIncrement(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	book, err := svc.AddBook(ctx, Book{Title: "TAOCP", Author: "Knuth", TotalCopies: 1})
	require.NoError(t, err)
	loan, err := svc.Issue(ctx, "stu-1", book.ID, futureDue())
	require.NoError(t, err)

	_, err = svc.Return(ctx, loan.ID)
	require.NoError(t, err)
	_, err = svc.Return(ctx, loan.ID)
	require.True(t, apperr.IsKind(err, apperr.Conflict))
	require.Equal(t, 1, store.snapshot(t, book.ID).AvailableCopies)
}

func TestConcurrentIssueOfLastCopy(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	book, err := svc.AddBook(ctx, Book{Title: "The Go Programming Language", Author: "Donovan", TotalCopies: 1})
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Issue(ctx, "stu-1", book.ID, futureDue())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case apperr.IsKind(err, apperr.Conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, callers-1, conflicts)
	require.Equal(t, 0, store.snapshot(t, book.ID).AvailableCopies)
}

// Random interleavings of issue and return must never drive the copy count
// outside [0, total].
func TestIssueReturnInterleavingInvariant(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	book, err := svc.AddBook(ctx, Book{Title: "PAIP", Author: "Norvig", TotalCopies: 3})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	var open []string
	for step := 0; step < 500; step++ {
		if rng.Intn(2) == 0 {
			loan, err := svc.Issue(ctx, "stu-1", book.ID, futureDue())
			if err == nil {
				open = append(open, loan.ID)
			} else {
				require.True(t, apperr.IsKind(err, apperr.Conflict))
			}
		} else if len(open) > 0 {
			i := rng.Intn(len(open))
			_, err := svc.Return(ctx, open[i])
			require.NoError(t, err)
			open = append(open[:i], open[i+1:]...)
		}

		b := store.snapshot(t, book.ID)
		require.GreaterOrEqual(t, b.AvailableCopies, 0)
		require.LessOrEqual(t, b.AvailableCopies, b.TotalCopies)
		require.Equal(t, b.TotalCopies-len(open), b.AvailableCopies)
	}
}

func TestOverdueFine(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		returned time.Time
		want     int
	}{
		{due.Add(-24 * time.Hour), 0},
		{due, 0},
		{due.Add(time.Hour), 5},           // partial day rounds up
		{due.Add(24 * time.Hour), 5},      // exactly one day
		{due.Add(25 * time.Hour), 10},     // one day and change
		{due.Add(10 * 24 * time.Hour), 50},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, OverdueFine(due, tc.returned, 5), "returned %s", tc.returned)
	}
}

func TestAddBookValidation(t *testing.T) {
	svc := NewService(newMockStore(), nil)
	ctx := context.Background()

	_, err := svc.AddBook(ctx, Book{Author: "x", TotalCopies: 1})
	require.True(t, apperr.IsKind(err, apperr.BadRequest))
	_, err = svc.AddBook(ctx, Book{Title: "x", Author: "y", TotalCopies: 0})
	require.True(t, apperr.IsKind(err, apperr.BadRequest))
}
