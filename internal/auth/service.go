package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"github.com/rakhadavedra/sow-analysis/internal"
)

// Service is the main auth service with dependencies
type Service struct {
	repo           RepositoryAPI
	tokenGenerator TokenGenerator
	resolver       PermissionResolver
	bcryptCost     int
	logger         *slog.Logger
}

func NewService(repo RepositoryAPI, tokenGen TokenGenerator, resolver PermissionResolver, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		resolver:       resolver,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// Authenticate validates credentials and returns a token pair. A missing user,
// wrong password and inactive account all collapse into the same error so the
// response never reveals whether the email exists.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	creds, err := s.repo.GetCredentials(ctx, dto.Email)
	if err != nil {
		s.logger.Warn("login failed: credentials lookup", "error", err)
		return AuthTokens{}, ErrInvalidCredentials
	}

	if !creds.IsActive {
		s.logger.Warn("login failed: inactive account", "user_id", creds.UserID)
		return AuthTokens{}, ErrInvalidCredentials
	}

	if err := VerifyPassword(creds.PasswordHash, dto.Password); err != nil {
		s.logger.Warn("login failed: password mismatch", "user_id", creds.UserID)
		return AuthTokens{}, ErrInvalidCredentials
	}

	return s.issueTokens(creds.UserID, creds.Email)
}

// RefreshTokens validates the refresh token and rotates the pair. The user
// must still exist and be active.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	user, err := s.repo.GetSessionUser(ctx, claims.UserID)
	if err != nil {
		s.logger.Warn("refresh failed: user lookup", "user_id", claims.UserID, "error", err)
		return AuthTokens{}, ErrInvalidToken
	}

	return s.issueTokens(user.ID, user.Email)
}

// ValidateAccessToken validates an access token and returns its claims.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateAccessToken(tokenString)
}

// SessionFor loads the user and attaches the resolved permission set, ready to
// be carried through request context.
func (s *Service) SessionFor(ctx context.Context, userID int64) (*internal.SessionUser, error) {
	user, err := s.repo.GetSessionUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	permissions, err := s.resolver.ResolvePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Permissions = permissions
	return user, nil
}

// HashPassword hashes with the configured bcrypt cost.
func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

func (s *Service) issueTokens(userID int64, email string) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(userID, email)
	if err != nil {
		return AuthTokens{}, err
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(userID, email)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// GenerateRandomToken generates a cryptographically secure random token
func GenerateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
