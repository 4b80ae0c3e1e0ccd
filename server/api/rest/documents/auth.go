package documents

import (
	"net/http"

	"github.com/buildit-dev/buildit/common/gerror"
)

// ExchangeTokenRequest trades a forge personal access token for a submitter
// JWT.
type ExchangeTokenRequest struct {
	// ForgeToken is a personal access token for the code forge
	// (e.g. a GitHub personal access token).
	ForgeToken string `json:"forge_token"`
}

func (d *ExchangeTokenRequest) Bind(r *http.Request) error {
	if d.ForgeToken == "" {
		return gerror.NewErrValidationFailed("A forge token must be specified")
	}
	return nil
}

// ExchangeTokenResponse carries the minted submitter JWT.
type ExchangeTokenResponse struct {
	Token string `json:"token"`
	Login string `json:"login"`
}
