package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/repository"
)

const minPasswordLen = 8

// UserStore is the persistence surface the user service depends on.
// *repository.UserRepository satisfies this interface.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, userID string) (domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateSubscription(ctx context.Context, userID string, upd repository.SubscriptionUpdate) error
}

// UserService owns account creation and credential checks.
type UserService struct {
	users UserStore

	now   func() time.Time
	newID func() string
}

// NewUserService creates a UserService.
func NewUserService(users UserStore) (*UserService, error) {
	if users == nil {
		return nil, errors.New("usecase: user store must not be nil")
	}
	return &UserService{users: users, now: time.Now, newID: uuid.NewString}, nil
}

// RegisterUser creates an email/password account. The email must be unused;
// the password is stored only as a bcrypt hash.
func (s *UserService) RegisterUser(ctx context.Context, email, password string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.User{}, newError(ErrorInvalidInput, "empty_email", nil)
	}
	if len(password) < minPasswordLen {
		return domain.User{}, newError(ErrorInvalidInput, "password_too_short", nil)
	}

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return domain.User{}, newError(ErrorAlreadyExists, "email_taken", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, storeError("register_lookup", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, newError(ErrorInternal, "hash_password", err)
	}

	user := domain.User{
		UserID:       s.newID(),
		Email:        email,
		Source:       domain.SourceEmail,
		PasswordHash: string(hash),
		CreatedAt:    s.timestamp(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, storeError("register_create", err)
	}
	return user, nil
}

// CreateGuestUser creates an anonymous account with a synthetic email so
// guest chats work without registration.
func (s *UserService) CreateGuestUser(ctx context.Context) (domain.User, error) {
	now := s.now().UTC()
	user := domain.User{
		UserID:    s.newID(),
		Email:     fmt.Sprintf("guest-%d@local.com", now.UnixMilli()),
		Source:    domain.SourceGuest,
		CreatedAt: now.Format(time.RFC3339Nano),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, storeError("create_guest", err)
	}
	return user, nil
}

// GetOrCreateOAuthUser resolves an OAuth sign-in to an account, creating one
// on first sign-in. A create that loses the race to a concurrent sign-in
// falls back to the lookup.
func (s *UserService) GetOrCreateOAuthUser(ctx context.Context, email, provider, providerAccountID string) (domain.User, error) {
	provider = strings.TrimSpace(provider)
	providerAccountID = strings.TrimSpace(providerAccountID)
	if provider == "" || providerAccountID == "" {
		return domain.User{}, newError(ErrorInvalidInput, "missing_oauth_identity", nil)
	}
	email = normalizeEmail(email)
	if email == "" {
		email = fmt.Sprintf("%s-%s@oauth.local", provider, providerAccountID)
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, storeError("oauth_lookup", err)
	}

	user = domain.User{
		UserID:            s.newID(),
		Email:             email,
		Source:            domain.SourceOAuth,
		Provider:          provider,
		ProviderAccountID: providerAccountID,
		CreatedAt:         s.timestamp(),
	}
	err = s.users.CreateUser(ctx, user)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, repository.ErrAlreadyExists) {
		// Lost the race; the winner's row is authoritative.
		user, err = s.users.FindUserByEmail(ctx, email)
		if err != nil {
			return domain.User{}, storeError("oauth_race_lookup", err)
		}
		return user, nil
	}
	return domain.User{}, storeError("oauth_create", err)
}

// AuthenticateUser checks email/password credentials. A bad password and an
// unknown email report the same code so probing cannot tell them apart.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, newError(ErrorInvalidInput, "missing_credentials", nil)
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, newError(ErrorForbidden, "bad_credentials", nil)
		}
		return domain.User{}, storeError("auth_lookup", err)
	}
	if user.PasswordHash == "" {
		return domain.User{}, newError(ErrorForbidden, "bad_credentials", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, newError(ErrorForbidden, "bad_credentials", nil)
	}
	return user, nil
}

// GetUserByEmail resolves an account by its email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.User{}, newError(ErrorInvalidInput, "empty_email", nil)
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, storeError("get_user_by_email", err)
	}
	return user, nil
}

// UpdateSubscription applies billing changes to an existing account.
func (s *UserService) UpdateSubscription(ctx context.Context, userID string, upd repository.SubscriptionUpdate) error {
	if strings.TrimSpace(userID) == "" {
		return newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	if err := s.users.UpdateSubscription(ctx, userID, upd); err != nil {
		return storeError("update_subscription", err)
	}
	return nil
}

func (s *UserService) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
