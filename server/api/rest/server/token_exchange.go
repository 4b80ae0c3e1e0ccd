package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
	"github.com/buildit-dev/buildit/server/services"
)

type TokenExchangeAPI struct {
	authService services.AuthService
	*APIBase
}

func NewTokenExchangeAPI(authService services.AuthService, logFactory logger.LogFactory) *TokenExchangeAPI {
	return &TokenExchangeAPI{
		authService: authService,
		APIBase:     NewAPIBase(logFactory("TokenExchangeAPI")),
	}
}

// Exchange handles POST /api/auth/exchange: a forge personal access token is
// validated against the packaging org and traded for a submitter JWT.
func (a *TokenExchangeAPI) Exchange(w http.ResponseWriter, r *http.Request) {
	req := &documents.ExchangeTokenRequest{}
	err := render.Bind(r, req)
	if err != nil {
		a.Error(w, r, fmt.Errorf("error reading ExchangeTokenRequest from request: %w", err))
		return
	}
	token, user, err := a.authService.ExchangeForgeToken(r.Context(), req.ForgeToken)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.Created(w, r, &documents.ExchangeTokenResponse{
		Token: token,
		Login: user.Login,
	})
}
