package client

import (
	"net/http"

	"github.com/buildit-dev/buildit/server/api/rest/middleware"
)

// WorkerSecretAuthenticator authenticates requests with the fleet-wide worker
// shared secret.
type WorkerSecretAuthenticator struct {
	secret string
}

func NewWorkerSecretAuthenticator(secret string) *WorkerSecretAuthenticator {
	return &WorkerSecretAuthenticator{secret: secret}
}

func (a *WorkerSecretAuthenticator) AuthenticateRequest(header http.Header) (http.Header, error) {
	header.Set(middleware.WorkerSecretHeader, a.secret)
	return header, nil
}

// BearerTokenAuthenticator authenticates requests with a submitter JWT minted
// by the token exchange.
type BearerTokenAuthenticator struct {
	token string
}

func NewBearerTokenAuthenticator(token string) *BearerTokenAuthenticator {
	return &BearerTokenAuthenticator{token: token}
}

func (a *BearerTokenAuthenticator) AuthenticateRequest(header http.Header) (http.Header, error) {
	header.Set("Authorization", "Bearer "+a.token)
	return header, nil
}

// ChatCredentialAuthenticator authenticates requests as the chat bridge.
type ChatCredentialAuthenticator struct {
	credential string
}

func NewChatCredentialAuthenticator(credential string) *ChatCredentialAuthenticator {
	return &ChatCredentialAuthenticator{credential: credential}
}

func (a *ChatCredentialAuthenticator) AuthenticateRequest(header http.Header) (http.Header, error) {
	header.Set(middleware.ChatCredentialHeader, a.credential)
	return header, nil
}
