package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"

	"github.com/raspisms/golang_services/internal/platform/database"
	"github.com/raspisms/golang_services/internal/platform/mailer"
	"github.com/raspisms/golang_services/internal/platform/messagebroker"
	"github.com/raspisms/golang_services/internal/user_service/domain"
	"github.com/raspisms/golang_services/internal/user_service/repository"
)

// PerPage is the page size of the user list.
const PerPage = 25

const (
	minGeneratedPassword = 6
	maxGeneratedPassword = 12
	passwordAlphabet     = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmail       = errors.New("email is not valid")
	ErrEmailExists        = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenInvalid       = errors.New("api key is invalid")
	ErrPasswordTooShort   = errors.New("password is too short")
	// ErrMailFailed means the credentials email could not be sent, so no account was created.
	ErrMailFailed = errors.New("could not send the credentials email")
)

func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateAPIKey returns a random key and the hash stored in place of it.
func GenerateAPIKey() (plainTextKey string, hashedKey string, err error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	plainTextKey = base64.URLEncoding.EncodeToString(randomBytes)
	return plainTextKey, HashAPIKey(plainTextKey), nil
}

func HashAPIKey(plainTextKey string) string {
	hash := sha3.Sum256([]byte(plainTextKey))
	return base64.URLEncoding.EncodeToString(hash[:])
}

// GeneratePassword returns a random password of 6 to 12 characters.
func GeneratePassword() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxGeneratedPassword-minGeneratedPassword+1))
	if err != nil {
		return "", err
	}
	length := minGeneratedPassword + int(n.Int64())
	buf := make([]byte, length)
	alphabetSize := big.NewInt(int64(len(passwordAlphabet)))
	for i := range buf {
		c, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = passwordAlphabet[c.Int64()]
	}
	return string(buf), nil
}

// UserCreatedEvent is published on messagebroker.SubjectUserCreated.
type UserCreatedEvent struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

type AuthConfig struct {
	// AppURL is quoted in the credentials email.
	AppURL string
}

type AuthService struct {
	userRepo         repository.UserRepository
	mailer           mailer.Mailer
	publisher        messagebroker.Publisher
	config           AuthConfig
	validate         *validator.Validate
	logger           *slog.Logger
	generatePassword func() (string, error)
}

func NewAuthService(
	userRepo repository.UserRepository,
	m mailer.Mailer,
	publisher messagebroker.Publisher,
	config AuthConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:         userRepo,
		mailer:           m,
		publisher:        publisher,
		config:           config,
		validate:         validator.New(),
		logger:           logger.With("service", "auth"),
		generatePassword: GeneratePassword,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.ErrorContext(ctx, "Error fetching user by email", "error", err)
		return nil, err
	}
	if !CheckPasswordHash(password, user.HashedPassword) {
		s.logger.WarnContext(ctx, "Failed login attempt", "userID", user.ID)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// CreateUser creates an account and emails its credentials. When password is
// empty one is generated. If the email cannot be sent no account is created.
func (s *AuthService) CreateUser(ctx context.Context, email, password string, isAdmin bool) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return nil, ErrInvalidEmail
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		s.logger.ErrorContext(ctx, "Error checking email existence", "error", err)
		return nil, err
	}

	if password == "" {
		generated, err := s.generatePassword()
		if err != nil {
			return nil, fmt.Errorf("generating password: %w", err)
		}
		password = generated
	}
	hashedPassword, err := HashPassword(password)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to hash password", "error", err)
		return nil, errors.New("failed to process user creation")
	}

	body, err := mailer.RenderCreateUser(mailer.CreateUserData{AppURL: s.config.AppURL, Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("rendering credentials email: %w", err)
	}
	if err := s.mailer.Send(ctx, email, mailer.CreateUserSubject, body); err != nil {
		s.logger.ErrorContext(ctx, "Credentials email failed, user not created", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrMailFailed, err)
	}

	createdUser, err := s.userRepo.Create(ctx, &domain.User{Email: email, HashedPassword: hashedPassword, IsAdmin: isAdmin})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrEmailExists
		}
		s.logger.ErrorContext(ctx, "Failed to create user in repository", "error", err)
		return nil, errors.New("failed to save user")
	}
	s.logger.InfoContext(ctx, "User created", "userID", createdUser.ID, "is_admin", isAdmin)

	_ = messagebroker.PublishJSON(ctx, s.publisher, s.logger, messagebroker.SubjectUserCreated, UserCreatedEvent{
		UserID:  createdUser.ID,
		Email:   createdUser.Email,
		IsAdmin: createdUser.IsAdmin,
	})
	return createdUser, nil
}

// EnsureAdmin makes email an administrator whose password is password, creating
// the account when needed. It sends no email and is a no-op when the account
// already matches. created reports whether a new account was inserted.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (user *domain.User, created bool, err error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, false, ErrEmailRequired
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return nil, false, ErrInvalidEmail
	}
	if len(password) < minGeneratedPassword {
		return nil, false, ErrPasswordTooShort
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin && CheckPasswordHash(password, existing.HashedPassword) {
			return existing, false, nil
		}
		hashedPassword, err := HashPassword(password)
		if err != nil {
			return nil, false, fmt.Errorf("hashing admin password: %w", err)
		}
		if err := s.userRepo.UpdateCredentials(ctx, existing.ID, hashedPassword, true); err != nil {
			return nil, false, fmt.Errorf("updating admin %s: %w", existing.ID, err)
		}
		existing.HashedPassword = hashedPassword
		existing.IsAdmin = true
		s.logger.InfoContext(ctx, "Administrator account updated", "userID", existing.ID)
		return existing, false, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, false, fmt.Errorf("looking up admin: %w", err)
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, false, fmt.Errorf("hashing admin password: %w", err)
	}
	user, err = s.userRepo.Create(ctx, &domain.User{Email: email, HashedPassword: hashedPassword, IsAdmin: true})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, false, ErrEmailExists
		}
		return nil, false, fmt.Errorf("creating admin: %w", err)
	}
	s.logger.InfoContext(ctx, "Administrator account created", "userID", user.ID)
	_ = messagebroker.PublishJSON(ctx, s.publisher, s.logger, messagebroker.SubjectUserCreated, UserCreatedEvent{
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: true,
	})
	return user, true, nil
}

// ListUsers returns a zero-based page of users and the total count.
func (s *AuthService) ListUsers(ctx context.Context, page int) ([]*domain.User, int, error) {
	return s.userRepo.List(ctx, PerPage, database.Offset(page, PerPage))
}

// DeleteUsers deletes every id and returns how many deletions failed.
func (s *AuthService) DeleteUsers(ctx context.Context, ids []string) int {
	failed := 0
	for _, id := range ids {
		if err := s.userRepo.Delete(ctx, id); err != nil {
			failed++
			s.logger.WarnContext(ctx, "Failed to delete user", "userID", id, "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "User deleted", "userID", id)
	}
	return failed
}

// AssignAPIKeyToUser replaces the user's API key. The returned key is not stored.
func (s *AuthService) AssignAPIKeyToUser(ctx context.Context, userID string) (string, error) {
	plainTextKey, apiKeyHash, err := GenerateAPIKey()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to generate API key", "error", err)
		return "", errors.New("API key generation failed")
	}
	if err := s.userRepo.UpdateAPIKeyHash(ctx, userID, apiKeyHash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to update user with API key hash", "error", err, "userID", userID)
		return "", errors.New("failed to assign API key")
	}
	return plainTextKey, nil
}

func (s *AuthService) ValidateAPIKey(ctx context.Context, plainTextKey string) (*domain.User, error) {
	if plainTextKey == "" {
		return nil, ErrTokenInvalid
	}
	user, err := s.userRepo.GetByAPIKeyHash(ctx, HashAPIKey(plainTextKey))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		s.logger.ErrorContext(ctx, "Error fetching user by API key hash", "error", err)
		return nil, err
	}
	return user, nil
}
