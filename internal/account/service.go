// Package account owns portal users: registration, password login, JWT
// access/refresh tokens, and password changes.
//
// Handlers talk to Service only.  Input problems come back as *FieldError
// so the forms pipeline can render them next to the offending field;
// everything else is a sentinel (ErrInvalidCredentials, ErrEmailTaken, ...)
// or a wrapped infrastructure error.
package account

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/agriportal/internal/metrics"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("account is disabled")
)

// Role is what a user trades in on the portal.
type Role string

const (
	RoleFarmer    Role = "farmer"
	RoleBuyer     Role = "buyer"
	RoleEquipment Role = "equipment"
	RoleGrocery   Role = "grocery"
)

// ParseRole maps s to a Role; empty means farmer.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleFarmer, true
	case RoleFarmer, RoleBuyer, RoleEquipment, RoleGrocery:
		return r, true
	}
	return "", false
}

// Registration is the sign-up input.
type Registration struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Session is what a successful login yields.
type Session struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// Service implements account operations over a Store.
type Service struct {
	store  Store
	tokens *Tokens
	cost   int
	log    *zap.SugaredLogger
	now    func() time.Time
	v      *validator.Validate

	dummyOnce sync.Once
	dummy     []byte
}

// NewService wires a Service.  cost 0 means DefaultBcryptCost; log may be
// nil.
func NewService(store Store, tokens *Tokens, cost int, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{
		store:  store,
		tokens: tokens,
		cost:   cost,
		log:    log,
		now:    time.Now,
		v:      validator.New(),
	}
}

// Tokens exposes the signer so handlers can size cookies.
func (s *Service) Tokens() *Tokens { return s.tokens }

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// Register creates a user.  The plain password never leaves this function.
func (s *Service) Register(ctx context.Context, in Registration) (*User, error) {
	u, err := s.register(ctx, in)
	s.record("register", err)
	return u, err
}

func (s *Service) register(ctx context.Context, in Registration) (*User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, &FieldError{"username", "Username is required"}
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, &FieldError{"username", "Username must be at most 40 characters"}
	}
	email := normalizeEmail(in.Email)
	if err := s.v.Var(email, "required,email"); err != nil {
		return nil, &FieldError{"email", "Please enter a valid email address"}
	}
	if err := CheckPasswordStrength(in.Password); err != nil {
		return nil, err
	}
	role, ok := ParseRole(in.Role)
	if !ok {
		return nil, &FieldError{"role", "Please select a valid role"}
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Infow("user registered", "user", u.ID, "role", u.Role)
	return u, nil
}

// Login checks credentials and mints a token pair.  Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	sess, err := s.login(ctx, email, password)
	s.record("login", err)
	return sess, err
}

func (s *Service) login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.ByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		// Spend the same bcrypt time as a real mismatch.
		_ = comparePassword(s.dummyHash(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := comparePassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrInactive
	}
	return s.issue(u)
}

// Refresh trades a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	sess, err := s.refresh(ctx, refreshToken)
	s.record("refresh", err)
	return sess, err
}

func (s *Service) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	id, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.store.ByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrInactive
	}
	return s.issue(u)
}

// Profile resolves an access token to its user.
func (s *Service) Profile(ctx context.Context, accessToken string) (*User, error) {
	id, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	u, err := s.store.ByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	return u, err
}

// ChangePassword replaces a user's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	err := s.changePassword(ctx, userID, current, next)
	s.record("change_password", err)
	return err
}

func (s *Service) changePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.store.ByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := comparePassword(u.PasswordHash, current); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return &FieldError{"currentPassword", "Current password is incorrect"}
		}
		return err
	}
	if err := CheckPasswordStrength(next); err != nil {
		var fe *FieldError
		if errors.As(err, &fe) {
			fe.Field = "newPassword"
		}
		return err
	}
	hash, err := HashPassword(next, s.cost)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, u.ID, hash, s.now().UTC()); err != nil {
		return err
	}
	s.log.Infow("password changed", "user", u.ID)
	return nil
}

// dummyHash is a hash at the service's cost that no password matches.
func (s *Service) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		h, err := HashPassword(uuid.NewString(), s.cost)
		if err != nil {
			s.log.Errorw("dummy hash", "err", err)
			return
		}
		s.dummy = h
	})
	return s.dummy
}

func (s *Service) issue(u *User) (*Session, error) {
	access, err := s.tokens.Access(u.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Refresh(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) record(event string, err error) {
	result := "ok"
	var fe *FieldError
	switch {
	case err == nil:
	case errors.As(err, &fe):
		result = "invalid"
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrEmailTaken), errors.Is(err, ErrInactive):
		result = "rejected"
	default:
		result = "error"
		s.log.Errorw("account operation failed", "event", event, "err", err)
	}
	metrics.AccountEventsTotal.WithLabelValues(event, result).Inc()
}
