package security

import (
	"context"

	"PGateway/tools/errs"
	"PGateway/tools/security"
)

// Authenticator resolves handshake bearer tokens to user identities. It
// is the gateway's Auth collaborator.
type Authenticator struct {
	opts security.Options
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{opts: security.DefaultOptions(secret)}
}

func (a *Authenticator) VerifyAndResolve(_ context.Context, credential string) (string, error) {
	if credential == "" {
		return "", errs.ErrAuthRequired
	}
	sub, err := security.VerifySubject(a.opts, credential)
	if err != nil {
		return "", errs.ErrAuthFailed.WithDetail(err.Error())
	}
	return sub, nil
}

// IssueToken signs a token for userID; used by the login surface and by
// local tooling.
func (a *Authenticator) IssueToken(userID string) (string, error) {
	tok, _, err := security.Generate(a.opts, userID)
	return tok, err
}
