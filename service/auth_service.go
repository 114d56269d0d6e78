package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

// verificationTokenBytes is the entropy of an email verification token.
const verificationTokenBytes = 32

// AuthService handles signup, email verification and login for both user
// classes.
type AuthService struct {
	users     ports.UserStore
	tokenizer ports.SessionTokenizer
	mailer    ports.Mailer
	clock     ports.Clock
	log       *zap.Logger

	baseURL string
}

// NewAuthService creates a new authentication service. baseURL is the
// externally reachable address used to build verification links.
func NewAuthService(
	users ports.UserStore,
	tokenizer ports.SessionTokenizer,
	mailer ports.Mailer,
	clock ports.Clock,
	log *zap.Logger,
	baseURL string,
) *AuthService {
	return &AuthService{
		users:     users,
		tokenizer: tokenizer,
		mailer:    mailer,
		clock:     clock,
		log:       log,
		baseURL:   baseURL,
	}
}

// SignupClient registers a new client account and sends the verification
// email. The account cannot log in until the email is verified.
func (s *AuthService) SignupClient(ctx context.Context, username, email, password string) (*core.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verifyToken, err := generateVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	user := &core.User{
		ID:                uuid.New().String(),
		Username:          username,
		Email:             email,
		PasswordHash:      string(hash),
		Type:              core.UserTypeClient,
		Verified:          false,
		VerificationToken: verifyToken,
		CreatedAt:         s.clock.Now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, verifyToken)
	if err := s.mailer.SendVerification(ctx, email, username, verifyURL); err != nil {
		// The account exists either way; the user can request the mail
		// again through support.
		s.log.Warn("failed to send verification email",
			zap.String("username", username),
			zap.Error(err),
		)
	}

	s.log.Info("client signed up", zap.String("username", username))
	return user, nil
}

// VerifyEmail marks the account holding token as verified and consumes the
// token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		return err
	}

	user.Verified = true
	user.VerificationToken = ""
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	s.log.Info("email verified", zap.String("username", user.Username))
	return nil
}

// Login authenticates username/password for the expected user class and
// returns a signed access token. Unverified clients are refused; ops
// accounts are seeded verified.
func (s *AuthService) Login(ctx context.Context, username, password string, want core.UserType) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		// Same outcome as a bad password, so probing for usernames
		// learns nothing.
		return "", core.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", core.ErrInvalidCredentials
	}

	if user.Type != want {
		return "", core.ErrWrongUserType
	}
	if user.Type == core.UserTypeClient && !user.Verified {
		return "", core.ErrUserNotVerified
	}

	token, err := s.tokenizer.AccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to create access token: %w", err)
	}

	s.log.Info("user logged in",
		zap.String("username", username),
		zap.String("type", string(user.Type)),
	)
	return token, nil
}

// CreateOpsUser seeds an operations account. Used by the bootstrap command;
// ops accounts are created verified and never receive verification email.
func (s *AuthService) CreateOpsUser(ctx context.Context, username, email, password string) (*core.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &core.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Type:         core.UserTypeOps,
		Verified:     true,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("ops user created", zap.String("username", username))
	return user, nil
}

// UserFromAccessToken resolves an access token to its account.
func (s *AuthService) UserFromAccessToken(ctx context.Context, token string) (*core.User, error) {
	subject, err := s.tokenizer.Subject(token)
	if err != nil {
		return nil, core.ErrInvalidCredentials
	}
	return s.users.GetByID(ctx, subject)
}

func generateVerificationToken() (string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
