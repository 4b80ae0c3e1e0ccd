package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/services"
)

type contextKey string

const (
	workerAuthenticatedKey contextKey = "worker-authenticated"
	submitterLoginKey      contextKey = "submitter-login"
	chatAuthenticatedKey   contextKey = "chat-authenticated"
)

// WorkerSecretHeader carries the fleet-wide shared secret workers present on
// every call.
const WorkerSecretHeader = "X-Worker-Secret"

// ChatCredentialHeader carries the credential the chat bridge presents when
// submitting on behalf of a linked user.
const ChatCredentialHeader = "X-Chat-Credential"

// MakeWorkerAuthenticator makes a middleware that rejects requests that do
// not present the fleet-wide worker secret.
func MakeWorkerAuthenticator(log logger.Log, authService services.AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			err := authService.VerifyWorkerSecret(r.Header.Get(WorkerSecretHeader))
			if err != nil {
				log.Warnf("Rejected worker request from %s: %s", r.RemoteAddr, err)
				writeUnauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), workerAuthenticatedKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// MakeSubmitterAuthenticator makes a middleware that authenticates the
// submitting surface: either a Bearer JWT minted by the token exchange, or
// the chat bridge credential. Requests carrying neither are rejected.
func MakeSubmitterAuthenticator(log logger.Log, authService services.AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			if len(authHeader) > len(bearerPrefix) && strings.HasPrefix(authHeader, bearerPrefix) {
				token := strings.TrimSpace(authHeader[len(bearerPrefix):])
				login, err := authService.VerifySubmitterJWT(token)
				if err != nil {
					log.Warnf("Rejected submitter JWT from %s: %s", r.RemoteAddr, err)
					writeUnauthorized(w)
					return
				}
				ctx := context.WithValue(r.Context(), submitterLoginKey, login)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if credential := r.Header.Get(ChatCredentialHeader); credential != "" {
				err := authService.VerifyChatCredential(credential)
				if err != nil {
					log.Warnf("Rejected chat credential from %s: %s", r.RemoteAddr, err)
					writeUnauthorized(w)
					return
				}
				ctx := context.WithValue(r.Context(), chatAuthenticatedKey, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			writeUnauthorized(w)
		}
		return http.HandlerFunc(fn)
	}
}

// SubmitterLogin returns the forge login of the authenticated submitter, or
// empty when the request was authenticated as the chat bridge instead.
func SubmitterLogin(r *http.Request) string {
	login, _ := r.Context().Value(submitterLoginKey).(string)
	return login
}

// IsChatAuthenticated reports whether the request was authenticated with the
// chat bridge credential.
func IsChatAuthenticated(r *http.Request) bool {
	authenticated, _ := r.Context().Value(chatAuthenticatedKey).(bool)
	return authenticated
}

func writeUnauthorized(w http.ResponseWriter) {
	http.Error(w, gerror.NewErrUnauthorized("Unauthorized").Error(), http.StatusUnauthorized)
}
