package notify

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"apsconnect/internal/apperr"
)

// ── Mock store ──

type mockStore struct {
	rows     map[string]*Notification
	failNext bool
	inserts  int
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string]*Notification)}
}

func (m *mockStore) Insert(_ context.Context, n Notification) (Notification, error) {
	m.inserts++
	if m.failNext {
		m.failNext = false
		return Notification{}, errors.New("connection reset")
	}
	if n.ID == "" {
		n.ID = "n-" + strconv.Itoa(m.inserts) + "-" + time.Now().Format("150405.000000")
	}
	n.CreatedAt = time.Now()
	m.rows[n.ID] = &n
	return n, nil
}

func (m *mockStore) Get(_ context.Context, id string) (Notification, error) {
	if n, ok := m.rows[id]; ok {
		return *n, nil
	}
	return Notification{}, apperr.New(apperr.NotFound, "notification %s not found", id)
}

func (m *mockStore) ListForUser(_ context.Context, userID, role, branch string, semester, _ int) ([]Notification, error) {
	var out []Notification
	for _, n := range m.rows {
		switch {
		case n.UserID == userID:
			out = append(out, *n)
		case n.UserID == "" && n.Role == role &&
			(n.Branch == "" || n.Branch == branch) &&
			(n.Semester == 0 || n.Semester == semester):
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *mockStore) MarkRead(_ context.Context, id, userID string) error {
	if n, ok := m.rows[id]; ok && n.UserID == userID {
		n.Read = true
		return nil
	}
	return apperr.New(apperr.NotFound, "notification %s not found", id)
}

type failingQueue struct{ published int }

func (q *failingQueue) Publish(context.Context, Message) error {
	q.published++
	return errors.New("redis down")
}

func (q *failingQueue) Consume(context.Context) (<-chan Message, error) {
	return nil, errors.New("redis down")
}

// ── Tests ──

func TestNotifyUserInsertsAndEnqueues(t *testing.T) {
	store := newMockStore()
	q := NewInMemory(4)
	svc := NewService(store, q, nil)
	ctx := context.Background()

	svc.NotifyUser(ctx, "stu-1", "Account approved", "Welcome aboard")
	require.Equal(t, 1, store.inserts)

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		require.Equal(t, "notification", msg.Type)
		n, err := store.Get(ctx, string(msg.Body))
		require.NoError(t, err)
		require.Equal(t, "stu-1", n.UserID)
	case <-time.After(time.Second):
		t.Fatal("no message dispatched")
	}
}

func TestNotifyFailuresAreSwallowed(t *testing.T) {
	store := newMockStore()
	store.failNext = true
	svc := NewService(store, &failingQueue{}, nil)
	ctx := context.Background()

	// Insert failure: logged, swallowed, nothing to dispatch.
	svc.NotifyUser(ctx, "stu-1", "t", "m")
	require.Empty(t, store.rows)

	// Queue failure after a successful insert: row still exists.
	svc.NotifyUser(ctx, "stu-1", "t", "m")
	require.Len(t, store.rows, 1)
}

func TestNotifyEmptyTargetDropped(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil)

	svc.Notify(context.Background(), Target{}, "t", "m")
	require.Zero(t, store.inserts)
}

func TestBroadcastMatching(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	svc.Notify(ctx, Target{Role: "student", Branch: "CSE", Semester: 3}, "Exam notice", "Hall B")
	svc.Notify(ctx, Target{Role: "student"}, "Holiday", "Campus closed Friday")
	svc.NotifyUser(ctx, "stu-1", "Fee verified", "")

	mine, err := svc.List(ctx, "stu-1", "student", "CSE", 3, 50)
	require.NoError(t, err)
	require.Len(t, mine, 3)

	other, err := svc.List(ctx, "stu-2", "student", "ECE", 3, 50)
	require.NoError(t, err)
	require.Len(t, other, 1) // only the role-wide holiday broadcast

	faculty, err := svc.List(ctx, "fac-1", "faculty", "CSE", 3, 50)
	require.NoError(t, err)
	require.Empty(t, faculty)
}

func TestMarkRead(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	svc.NotifyUser(ctx, "stu-1", "t", "m")
	var id string
	for k := range store.rows {
		id = k
	}

	require.Error(t, svc.MarkRead(ctx, id, "stu-2")) // not the owner
	require.NoError(t, svc.MarkRead(ctx, id, "stu-1"))
	n, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, n.Read)

	require.True(t, apperr.IsKind(svc.MarkRead(ctx, "", ""), apperr.BadRequest))
}

func TestQueueSerializationRoundTrip(t *testing.T) {
	msg := Message{Type: "notification", Body: []byte("id|with|pipes")}
	got, err := deserialize(serialize(msg))
	require.NoError(t, err)
	require.Equal(t, msg.Type, got.Type)
	require.Equal(t, msg.Body, got.Body)
}

func TestInMemoryQueueHonorsContext(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, q.Publish(ctx, Message{Type: "notification", Body: []byte("a")}))
	// Buffer full; a cancelled context unblocks the publisher.
	cancel()
	err := q.Publish(ctx, Message{Type: "notification", Body: []byte("b")})
	require.ErrorIs(t, err, context.Canceled)
}
