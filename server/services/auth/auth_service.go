package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/services"
)

const (
	DefaultJWTExpiryDuration = 24 * time.Hour
	DefaultJWTIssuer         = "BuildIt"
)

// AuthServiceConfig carries the secrets the coordinator authenticates with.
type AuthServiceConfig struct {
	// WorkerSharedSecret is presented by workers on every call.
	WorkerSharedSecret string
	// ChatCredential is presented by the chat bridge when submitting on
	// behalf of a linked user.
	ChatCredential string
	// JWTSigningSecret signs submitter tokens (HS256).
	JWTSigningSecret []byte
	// JWTExpiryDuration defaults to DefaultJWTExpiryDuration when zero.
	JWTExpiryDuration time.Duration
}

type AuthService struct {
	config   AuthServiceConfig
	resolver services.Resolver
	logger.Log
}

func NewAuthService(config AuthServiceConfig, resolver services.Resolver, logFactory logger.LogFactory) *AuthService {
	if config.JWTExpiryDuration == 0 {
		config.JWTExpiryDuration = DefaultJWTExpiryDuration
	}
	return &AuthService{
		config:   config,
		resolver: resolver,
		Log:      logFactory("AuthService"),
	}
}

// VerifyWorkerSecret checks the shared secret presented by a worker.
func (s *AuthService) VerifyWorkerSecret(secret string) error {
	if s.config.WorkerSharedSecret == "" {
		return gerror.NewErrUnauthorized("Worker authentication is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.config.WorkerSharedSecret)) != 1 {
		return gerror.NewErrUnauthorized("Invalid worker secret")
	}
	return nil
}

// VerifyChatCredential checks the credential presented by the chat bridge.
func (s *AuthService) VerifyChatCredential(credential string) error {
	if s.config.ChatCredential == "" {
		return gerror.NewErrUnauthorized("Chat authentication is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(credential), []byte(s.config.ChatCredential)) != 1 {
		return gerror.NewErrUnauthorized("Invalid chat credential")
	}
	return nil
}

type submitterTokenClaims struct {
	jwt.RegisteredClaims
}

// ExchangeForgeToken validates a forge personal access token, checks the
// maintainer-org membership of its owner and mints a submitter JWT with the
// forge login as subject.
func (s *AuthService) ExchangeForgeToken(ctx context.Context, forgeToken string) (string, *services.ForgeUser, error) {
	user, err := s.resolver.AuthenticateToken(ctx, forgeToken)
	if err != nil {
		return "", nil, gerror.NewErrUnauthorized("Invalid forge token").Wrap(err)
	}
	member, err := s.resolver.IsOrgMember(ctx, user.Login)
	if err != nil {
		return "", nil, fmt.Errorf("error checking org membership: %w", err)
	}
	if !member {
		return "", nil, gerror.NewErrUnauthorized("Only maintainer-org members may submit pipelines")
	}
	tokenStr, err := s.mintSubmitterJWT(user.Login)
	if err != nil {
		return "", nil, err
	}
	s.Infof("Minted submitter token for %q", user.Login)
	return tokenStr, user, nil
}

func (s *AuthService) mintSubmitterJWT(login string) (string, error) {
	now := time.Now()
	claims := &submitterTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWTExpiryDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    DefaultJWTIssuer,
			Subject:   login,
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(s.config.JWTSigningSecret)
	if err != nil {
		return "", fmt.Errorf("error signing submitter JWT: %w", err)
	}
	return tokenStr, nil
}

// VerifySubmitterJWT validates a submitter JWT and returns the forge login
// it was minted for. The login is NOT re-checked against the forge.
func (s *AuthService) VerifySubmitterJWT(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &submitterTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("error unexpected signing method: %v", token.Header["alg"])
		}
		return s.config.JWTSigningSecret, nil
	})
	if err != nil {
		return "", gerror.NewErrUnauthorized("Invalid submitter token").Wrap(err)
	}
	claims := token.Claims.(*submitterTokenClaims)
	if claims.Subject == "" {
		return "", gerror.NewErrUnauthorized("Submitter token has no subject")
	}
	return claims.Subject, nil
}
