package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"apsconnect/internal/apperr"
	"apsconnect/internal/metrics"
)

// Store is the persistence surface the service needs.
type Store interface {
	InsertUser(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	SetStatus(ctx context.Context, id string, status Status, remark string) (User, error)
	ListPending(ctx context.Context, branch string, semester int) ([]User, error)
	SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	RevokeRefreshToken(ctx context.Context, token string) error
	RefreshTokenActive(ctx context.Context, token string) (bool, error)
}

// Notifier delivers best-effort notifications to a single user.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, title, message string)
}

// Service resolves principals and drives the approval workflow.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a service backed by a store.
func NewService(store Store, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// RegisterInput carries a self-registration request.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	Branch   string `json:"branch"`
	Semester int    `json:"semester"`
}

// Register creates a pending account. Admin accounts are provisioned out of
// band, never self-registered.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return User{}, apperr.New(apperr.BadRequest, "name, email and password are required")
	}
	if !in.Role.Valid() || in.Role == RoleAdmin {
		return User{}, apperr.New(apperr.BadRequest, "invalid role %q", in.Role)
	}
	if in.Role == RoleStudent && (in.Branch == "" || in.Semester <= 0) {
		return User{}, apperr.New(apperr.BadRequest, "students must supply branch and semester")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, apperr.Wrap(apperr.Internal, err, "hash password")
	}
	u, err := s.store.InsertUser(ctx, User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Status:       StatusPending,
		Branch:       in.Branch,
		Semester:     in.Semester,
	})
	if err != nil {
		if apperr.IsKind(err, apperr.Conflict) {
			return User{}, err
		}
		return User{}, apperr.Wrap(apperr.Internal, err, "create user")
	}
	s.logger.Info("account registered",
		zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Login verifies credentials and returns the account.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	u, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return User{}, apperr.New(apperr.Unauthorized, "invalid credentials")
		}
		return User{}, apperr.Wrap(apperr.Internal, err, "lookup user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, apperr.New(apperr.Unauthorized, "invalid credentials")
	}
	return u, nil
}

// Resolve maps a token subject to the full account record. Every privileged
// operation re-resolves; authorization decisions are never cached.
func (s *Service) Resolve(ctx context.Context, id string) (User, error) {
	return s.store.GetByID(ctx, id)
}

// SaveRefreshToken persists a refresh token for later rotation checks.
func (s *Service) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return s.store.SaveRefreshToken(ctx, userID, token, expiresAt)
}

// Refresh validates a stored refresh token and returns its account.
func (s *Service) Refresh(ctx context.Context, userID, token string) (User, error) {
	active, err := s.store.RefreshTokenActive(ctx, token)
	if err != nil {
		return User{}, apperr.Wrap(apperr.Internal, err, "check refresh token")
	}
	if !active {
		return User{}, apperr.New(apperr.Unauthorized, "refresh token expired or revoked")
	}
	return s.store.GetByID(ctx, userID)
}

// RevokeRefreshToken invalidates a refresh token.
func (s *Service) RevokeRefreshToken(ctx context.Context, token string) error {
	return s.store.RevokeRefreshToken(ctx, token)
}

// Approve transitions target to approved, gated by the scope predicate.
func (s *Service) Approve(ctx context.Context, actorID, targetID, remark string) (User, error) {
	return s.transition(ctx, actorID, targetID, StatusApproved, remark)
}

// Reject transitions target to rejected with a remark.
func (s *Service) Reject(ctx context.Context, actorID, targetID, remark string) (User, error) {
	return s.transition(ctx, actorID, targetID, StatusRejected, remark)
}

func (s *Service) transition(ctx context.Context, actorID, targetID string, status Status, remark string) (User, error) {
	actor, err := s.store.GetByID(ctx, actorID)
	if err != nil {
		return User{}, err
	}
	if actor.Role != RoleFaculty && actor.Role != RoleAdmin {
		return User{}, apperr.New(apperr.Forbidden, "role %s may not approve accounts", actor.Role)
	}
	if actor.Status != StatusApproved {
		return User{}, apperr.New(apperr.Forbidden, "account %s is not approved", actorID)
	}
	target, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	if !CanTransition(actor, target) {
		return User{}, apperr.New(apperr.Forbidden, "account outside your branch/semester scope")
	}

	updated, err := s.store.SetStatus(ctx, targetID, status, remark)
	if err != nil {
		return User{}, err
	}
	metrics.ApprovalsTotal.WithLabelValues(string(status)).Inc()
	s.logger.Info("account status changed",
		zap.String("target", targetID),
		zap.String("actor", actorID),
		zap.String("status", string(status)))

	if s.notifier != nil {
		msg := fmt.Sprintf("Your account has been %s.", status)
		if remark != "" {
			msg += " Remark: " + remark
		}
		s.notifier.NotifyUser(ctx, targetID, "Account "+string(status), msg)
	}
	return updated, nil
}

// PendingFor lists pending accounts visible to the actor: admins see all,
// faculty only their own branch and semester.
func (s *Service) PendingFor(ctx context.Context, actorID string) ([]User, error) {
	actor, err := s.store.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Status != StatusApproved {
		return nil, apperr.New(apperr.Forbidden, "account %s is not approved", actorID)
	}
	switch actor.Role {
	case RoleAdmin:
		return s.store.ListPending(ctx, "", 0)
	case RoleFaculty:
		return s.store.ListPending(ctx, actor.Branch, actor.Semester)
	default:
		return nil, apperr.New(apperr.Forbidden, "role %s may not list pending accounts", actor.Role)
	}
}
