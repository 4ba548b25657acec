package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aslanbek/account-service/internal/auth"
	"github.com/aslanbek/account-service/internal/entity"
	"github.com/aslanbek/account-service/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("email or password do not match")
	ErrValidation         = errors.New("validation failed")
)

// phoneRegex accepts 10-digit numbers starting with 6-9.
var phoneRegex = regexp.MustCompile(`^[6-9]\d{9}$`)

const passwordResetTTL = 15 * time.Minute

// Repository is the credential-store contract the usecase depends on.
type Repository interface {
	CreateUser(ctx context.Context, user *entity.User) (primitive.ObjectID, error)
	GetUserByEmail(ctx context.Context, email string, includePassword bool) (*entity.User, error)
	GetUserByID(ctx context.Context, id string) (*entity.User, error)
	UpdateUser(ctx context.Context, id string, update repository.UserUpdate) error
	SetPasswordReset(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error
	ClearPasswordReset(ctx context.Context, id string) error
}

// Mailer sends account mail. Implementations must not block on retries;
// failures are logged and never fail the request.
type Mailer interface {
	SendWelcome(toEmail, toName string) error
}

// EventPublisher emits account lifecycle events.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *entity.User) error
	PublishUserUpdated(ctx context.Context, user *entity.User) error
}

type UserUsecase struct {
	repo   Repository
	tokens *auth.TokenManager
	mailer Mailer
	events EventPublisher
	logger *zap.Logger
}

// NewUserUsecase wires the user use cases. mailer and events are
// optional; pass nil to disable the corresponding side effect.
func NewUserUsecase(repo Repository, tokens *auth.TokenManager, mailer Mailer, events EventPublisher, logger *zap.Logger) *UserUsecase {
	return &UserUsecase{
		repo:   repo,
		tokens: tokens,
		mailer: mailer,
		events: events,
		logger: logger.Named("UserUsecase"),
	}
}

// RegisterInput is the registration payload after JSON decoding.
type RegisterInput struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
}

func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(5, 0)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 0)),
		validation.Field(&r.PhoneNumber, validation.Required, validation.Match(phoneRegex)),
	)
}

// Register validates the payload, hashes the password and creates the
// user, then issues a session token. The welcome mail and the
// registered event are best-effort.
func (u *UserUsecase) Register(ctx context.Context, input RegisterInput) (*entity.User, string, error) {
	input.FullName = strings.ToLower(strings.TrimSpace(input.FullName))
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := input.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrValidation, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		u.logger.Error("Failed to hash password during registration", zap.String("email", input.Email), zap.Error(err))
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		FullName:     input.FullName,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		PhoneNumber:  input.PhoneNumber,
	}

	userID, err := u.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, "", err
	}

	token, err := u.tokens.Issue(userID.Hex())
	if err != nil {
		return nil, "", err
	}

	if u.mailer != nil {
		if err := u.mailer.SendWelcome(user.Email, user.FullName); err != nil {
			u.logger.Warn("Failed to send welcome email", zap.String("email", user.Email), zap.Error(err))
		}
	}
	if u.events != nil {
		if err := u.events.PublishUserRegistered(ctx, user); err != nil {
			u.logger.Warn("Failed to publish user.registered event", zap.String("userID", userID.Hex()), zap.Error(err))
		}
	}

	return user, token, nil
}

// LoginInput is the login payload.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (l LoginInput) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Email, validation.Required),
		validation.Field(&l.Password, validation.Required),
	)
}

// Login verifies the credentials and issues a session token. Unknown
// email and wrong password fail identically so accounts cannot be
// enumerated.
func (u *UserUsecase) Login(ctx context.Context, input LoginInput) (*entity.User, string, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := input.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrValidation, err)
	}

	user, err := u.repo.GetUserByEmail(ctx, input.Email, true)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, "", ErrInvalidCredentials
		}
		u.logger.Error("Failed to compare password hash", zap.String("email", input.Email), zap.Error(err))
		return nil, "", err
	}

	token, err := u.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// GetProfile resolves a user by id, password hash excluded.
func (u *UserUsecase) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	return u.repo.GetUserByID(ctx, userID)
}

// UpdateInput is a partial profile update; nil fields are left alone.
type UpdateInput struct {
	FullName    *string `json:"fullName"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

func (i UpdateInput) validate() error {
	var rules []*validation.FieldRules
	if i.FullName != nil {
		rules = append(rules, validation.Field(&i.FullName, validation.Length(5, 0)))
	}
	if i.Email != nil {
		rules = append(rules, validation.Field(&i.Email, is.Email))
	}
	if i.PhoneNumber != nil {
		rules = append(rules, validation.Field(&i.PhoneNumber, validation.Match(phoneRegex)))
	}
	return validation.ValidateStruct(&i, rules...)
}

// UpdateProfile re-validates the changed fields and applies them. An
// explicit empty string counts as not provided, so it can neither blank
// out a field nor slip past the field rules. The updated event is
// best-effort.
func (u *UserUsecase) UpdateProfile(ctx context.Context, userID string, input UpdateInput) error {
	if input.FullName != nil {
		normalized := strings.ToLower(strings.TrimSpace(*input.FullName))
		if normalized == "" {
			input.FullName = nil
		} else {
			input.FullName = &normalized
		}
	}
	if input.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*input.Email))
		if normalized == "" {
			input.Email = nil
		} else {
			input.Email = &normalized
		}
	}
	if input.PhoneNumber != nil && *input.PhoneNumber == "" {
		input.PhoneNumber = nil
	}

	if err := input.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	err := u.repo.UpdateUser(ctx, userID, repository.UserUpdate{
		FullName:    input.FullName,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
	})
	if err != nil {
		return err
	}

	if u.events != nil {
		if user, err := u.repo.GetUserByID(ctx, userID); err == nil {
			if err := u.events.PublishUserUpdated(ctx, user); err != nil {
				u.logger.Warn("Failed to publish user.updated event", zap.String("userID", userID), zap.Error(err))
			}
		}
	}

	return nil
}

// GeneratePasswordReset stores the hash of a fresh reset token with a
// 15 minute expiry and returns the plaintext token once. No transport
// for the token is mounted here; the reset-completion flow lives with
// its future consumer.
func (u *UserUsecase) GeneratePasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := u.repo.GetUserByEmail(ctx, email, false)
	if err != nil {
		return "", err
	}

	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	expiresAt := time.Now().Add(passwordResetTTL)
	if err := u.repo.SetPasswordReset(ctx, user.ID.Hex(), HashResetToken(token), expiresAt); err != nil {
		return "", err
	}

	return token, nil
}

// InvalidatePasswordReset clears the stored reset-token pair, either
// after a completed reset or once the expiry has passed.
func (u *UserUsecase) InvalidatePasswordReset(ctx context.Context, userID string) error {
	return u.repo.ClearPasswordReset(ctx, userID)
}

// HashResetToken maps a plaintext reset token to its stored form.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
