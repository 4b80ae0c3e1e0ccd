package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/services"
	"github.com/buildit-dev/buildit/server/services/resolver"
)

func testAuthService(res services.Resolver) *AuthService {
	return NewAuthService(AuthServiceConfig{
		WorkerSharedSecret: "worker-secret",
		ChatCredential:     "chat-credential",
		JWTSigningSecret:   []byte("signing-secret"),
		JWTExpiryDuration:  time.Hour,
	}, res, logger.NoOpLogFactory)
}

func TestVerifyWorkerSecret(t *testing.T) {
	service := testAuthService(resolver.NewStaticResolver())
	require.NoError(t, service.VerifyWorkerSecret("worker-secret"))
	err := service.VerifyWorkerSecret("wrong")
	require.Error(t, err)
	require.NotNil(t, gerror.ToUnauthorized(err))

	unconfigured := NewAuthService(AuthServiceConfig{}, resolver.NewStaticResolver(), logger.NoOpLogFactory)
	require.Error(t, unconfigured.VerifyWorkerSecret(""))
}

func TestVerifyChatCredential(t *testing.T) {
	service := testAuthService(resolver.NewStaticResolver())
	require.NoError(t, service.VerifyChatCredential("chat-credential"))
	require.Error(t, service.VerifyChatCredential("wrong"))
}

func TestExchangeForgeToken(t *testing.T) {
	ctx := context.Background()
	maintainer := &services.ForgeUser{ID: 1, Login: "maintainer"}
	outsider := &services.ForgeUser{ID: 2, Login: "outsider"}
	res := resolver.NewStaticResolver().
		AddUser(maintainer, true).
		AddUser(outsider, false).
		AddToken("good-token", maintainer).
		AddToken("outsider-token", outsider)
	service := testAuthService(res)

	tokenStr, user, err := service.ExchangeForgeToken(ctx, "good-token")
	require.NoError(t, err)
	require.Equal(t, "maintainer", user.Login)

	login, err := service.VerifySubmitterJWT(tokenStr)
	require.NoError(t, err)
	require.Equal(t, "maintainer", login)

	_, _, err = service.ExchangeForgeToken(ctx, "outsider-token")
	require.Error(t, err)
	require.NotNil(t, gerror.ToUnauthorized(err))

	_, _, err = service.ExchangeForgeToken(ctx, "bogus-token")
	require.Error(t, err)
	require.NotNil(t, gerror.ToUnauthorized(err))
}

func TestVerifySubmitterJWTRejectsForgeries(t *testing.T) {
	service := testAuthService(resolver.NewStaticResolver())
	other := NewAuthService(AuthServiceConfig{
		JWTSigningSecret: []byte("a-different-secret"),
	}, resolver.NewStaticResolver(), logger.NoOpLogFactory)

	forged, err := other.mintSubmitterJWT("maintainer")
	require.NoError(t, err)
	_, err = service.VerifySubmitterJWT(forged)
	require.Error(t, err)
	require.NotNil(t, gerror.ToUnauthorized(err))

	_, err = service.VerifySubmitterJWT("not-a-jwt")
	require.Error(t, err)
}
