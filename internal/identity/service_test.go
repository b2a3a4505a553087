package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"apsconnect/internal/apperr"
)

// ── Mock store ──

type mockStore struct {
	users   map[string]*User
	byEmail map[string]*User
	tokens  map[string]bool
	nextID  int
}

func newMockStore() *mockStore {
	return &mockStore{
		users:   make(map[string]*User),
		byEmail: make(map[string]*User),
		tokens:  make(map[string]bool),
	}
}

func (m *mockStore) InsertUser(_ context.Context, u User) (User, error) {
	// Mirrors the users.email unique index.
	if _, exists := m.byEmail[u.Email]; exists {
		return User{}, apperr.New(apperr.Conflict, "email %s already registered", u.Email)
	}
	if u.ID == "" {
		m.nextID++
		u.ID = "user-" + string(rune('a'+m.nextID))
	}
	u.CreatedAt = time.Now()
	m.users[u.ID] = &u
	m.byEmail[u.Email] = &u
	return u, nil
}

func (m *mockStore) GetByID(_ context.Context, id string) (User, error) {
	if u, ok := m.users[id]; ok {
		return *u, nil
	}
	return User{}, apperr.New(apperr.NotFound, "user %s not found", id)
}

func (m *mockStore) GetByEmail(_ context.Context, email string) (User, error) {
	if u, ok := m.byEmail[email]; ok {
		return *u, nil
	}
	return User{}, apperr.New(apperr.NotFound, "no account for %s", email)
}

func (m *mockStore) SetStatus(_ context.Context, id string, status Status, remark string) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, apperr.New(apperr.NotFound, "user %s not found", id)
	}
	u.Status = status
	u.Remark = remark
	return *u, nil
}

func (m *mockStore) ListPending(_ context.Context, branch string, semester int) ([]User, error) {
	var out []User
	for _, u := range m.users {
		if u.Status != StatusPending {
			continue
		}
		if branch != "" && u.Branch != branch {
			continue
		}
		if semester > 0 && u.Semester != semester {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockStore) SaveRefreshToken(_ context.Context, _, token string, _ time.Time) error {
	m.tokens[token] = true
	return nil
}

func (m *mockStore) RevokeRefreshToken(_ context.Context, token string) error {
	m.tokens[token] = false
	return nil
}

func (m *mockStore) RefreshTokenActive(_ context.Context, token string) (bool, error) {
	return m.tokens[token], nil
}

type recordingNotifier struct {
	userIDs []string
	titles  []string
}

func (n *recordingNotifier) NotifyUser(_ context.Context, userID, title, _ string) {
	n.userIDs = append(n.userIDs, userID)
	n.titles = append(n.titles, title)
}

func seedUser(t *testing.T, store *mockStore, role Role, status Status, branch string, semester int) User {
	t.Helper()
	email := fmt.Sprintf("%s-%d@test", role, len(store.users)+1)
	u, err := store.InsertUser(context.Background(), User{
		Name: "u", Email: email, Role: role,
		Status: status, Branch: branch, Semester: semester,
	})
	require.NoError(t, err)
	return u
}

// ── Tests ──

func TestRegisterAndLogin(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{
		Name: "Asha", Email: "Asha@College.Edu", Password: "secret123",
		Role: RoleStudent, Branch: "CSE", Semester: 3,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, u.Status)
	require.Equal(t, "asha@college.edu", u.Email)

	got, err := svc.Login(ctx, "asha@college.edu", "secret123")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = svc.Login(ctx, "asha@college.edu", "wrong")
	require.True(t, apperr.IsKind(err, apperr.Unauthorized))

	_, err = svc.Login(ctx, "nobody@college.edu", "secret123")
	require.True(t, apperr.IsKind(err, apperr.Unauthorized))
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMockStore(), nil, nil)
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "x@y", Password: "p"},                                             // no name
		{Name: "n", Email: "x@y", Password: "p", Role: RoleAdmin},                 // admin not self-registered
		{Name: "n", Email: "x@y", Password: "p", Role: "dean"},                    // unknown role
		{Name: "n", Email: "x@y", Password: "p", Role: RoleStudent},               // student needs scope
		{Name: "n", Email: "x@y", Password: "p", Role: RoleStudent, Branch: "CS"}, // missing semester
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		require.True(t, apperr.IsKind(err, apperr.BadRequest), "input %+v", in)
	}
}

func TestFacultyApprovalScopeRule(t *testing.T) {
	store := newMockStore()
	notifier := &recordingNotifier{}
	svc := NewService(store, notifier, nil)
	ctx := context.Background()

	faculty := seedUser(t, store, RoleFaculty, StatusApproved, "CSE", 3)
	inScope := seedUser(t, store, RoleStudent, StatusPending, "CSE", 3)
	wrongBranch := seedUser(t, store, RoleStudent, StatusPending, "ECE", 3)
	wrongSem := seedUser(t, store, RoleStudent, StatusPending, "CSE", 5)

	got, err := svc.Approve(ctx, faculty.ID, inScope.ID, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, got.Status)
	require.Equal(t, []string{inScope.ID}, notifier.userIDs)

	for _, target := range []User{wrongBranch, wrongSem} {
		_, err := svc.Approve(ctx, faculty.ID, target.ID, "")
		require.True(t, apperr.IsKind(err, apperr.Forbidden))
		// No state change on forbidden transitions.
		after, gerr := store.GetByID(ctx, target.ID)
		require.NoError(t, gerr)
		require.Equal(t, StatusPending, after.Status)
	}
}

func TestAdminBypassesScope(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	admin := seedUser(t, store, RoleAdmin, StatusApproved, "", 0)
	student := seedUser(t, store, RoleStudent, StatusPending, "ME", 7)

	got, err := svc.Reject(ctx, admin.ID, student.ID, "documents missing")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, got.Status)
	require.Equal(t, "documents missing", got.Remark)
}

func TestPendingFacultyCannotTransition(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	// Role alone is not enough: the acting account must itself be approved.
	faculty := seedUser(t, store, RoleFaculty, StatusPending, "CSE", 3)
	student := seedUser(t, store, RoleStudent, StatusPending, "CSE", 3)

	_, err := svc.Approve(ctx, faculty.ID, student.ID, "")
	require.True(t, apperr.IsKind(err, apperr.Forbidden))
	after, err := store.GetByID(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, after.Status)

	_, err = svc.PendingFor(ctx, faculty.ID)
	require.True(t, apperr.IsKind(err, apperr.Forbidden))
}

func TestDuplicateEmailRegistrationConflicts(t *testing.T) {
	svc := NewService(newMockStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{
		Name: "First", Email: "same@college.edu", Password: "p1", Role: RoleFaculty,
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{
		Name: "Second", Email: "Same@College.Edu", Password: "p2", Role: RoleFaculty,
	})
	require.True(t, apperr.IsKind(err, apperr.Conflict))
}

func TestStudentCannotTransition(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	student := seedUser(t, store, RoleStudent, StatusApproved, "CSE", 3)
	other := seedUser(t, store, RoleStudent, StatusPending, "CSE", 3)

	_, err := svc.Approve(ctx, student.ID, other.ID, "")
	require.True(t, apperr.IsKind(err, apperr.Forbidden))
}

func TestRepeatedTransitionOverwrites(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	admin := seedUser(t, store, RoleAdmin, StatusApproved, "", 0)
	student := seedUser(t, store, RoleStudent, StatusPending, "CSE", 3)

	_, err := svc.Approve(ctx, admin.ID, student.ID, "")
	require.NoError(t, err)
	got, err := svc.Reject(ctx, admin.ID, student.ID, "revoked")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, got.Status)
	require.Equal(t, "revoked", got.Remark)
}

func TestPendingForScopesFaculty(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	faculty := seedUser(t, store, RoleFaculty, StatusApproved, "CSE", 3)
	admin := seedUser(t, store, RoleAdmin, StatusApproved, "", 0)
	seedUser(t, store, RoleStudent, StatusPending, "CSE", 3)
	seedUser(t, store, RoleStudent, StatusPending, "ECE", 3)

	mine, err := svc.PendingFor(ctx, faculty.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "CSE", mine[0].Branch)

	all, err := svc.PendingFor(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	u := seedUser(t, store, RoleStudent, StatusApproved, "CSE", 3)
	require.NoError(t, svc.SaveRefreshToken(ctx, u.ID, "tok-1", time.Now().Add(time.Hour)))

	got, err := svc.Refresh(ctx, u.ID, "tok-1")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	require.NoError(t, svc.RevokeRefreshToken(ctx, "tok-1"))
	_, err = svc.Refresh(ctx, u.ID, "tok-1")
	require.True(t, apperr.IsKind(err, apperr.Unauthorized))
}

func TestCanTransitionPredicate(t *testing.T) {
	admin := User{Role: RoleAdmin}
	faculty := User{Role: RoleFaculty, Branch: "CSE", Semester: 3}
	alumni := User{Role: RoleAlumni}

	student := User{Role: RoleStudent, Branch: "CSE", Semester: 3}
	otherFaculty := User{Role: RoleFaculty, Branch: "CSE", Semester: 3}

	require.True(t, CanTransition(admin, student))
	require.True(t, CanTransition(faculty, student))
	require.False(t, CanTransition(faculty, otherFaculty)) // faculty may only act on students
	require.False(t, CanTransition(faculty, User{Role: RoleStudent, Branch: "ECE", Semester: 3}))
	require.False(t, CanTransition(faculty, User{Role: RoleStudent, Branch: "CSE", Semester: 4}))
	require.False(t, CanTransition(alumni, student))
}
