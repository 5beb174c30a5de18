package auth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/nhle/mail-engine/internal/model"
)

// Exchanger performs the two stateless token endpoint exchanges. Its HTTP
// client never follows redirects: a redirect is not a valid token response
// and must surface as an error.
type Exchanger struct {
	httpClient *http.Client
}

// NewExchanger returns an Exchanger with a bounded, redirect-refusing
// transport.
func NewExchanger() *Exchanger {
	return &Exchanger{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ExchangeCode presents the authorization code and PKCE verifier (plus the
// client secret, when configured, in the request body) to the token
// endpoint.
func (e *Exchanger) ExchangeCode(ctx context.Context, cfg *oauth2.Config, code, verifier string) (model.TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return model.TokenSet{}, &ExchangeError{Grant: "authorization_code", Err: err}
	}

	return model.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}

// ExchangeRefresh presents a stored refresh token to the token endpoint.
// When the endpoint omits a new refresh token, oauth2 carries the supplied
// one forward, so the returned set always holds a usable refresh token.
func (e *Exchanger) ExchangeRefresh(ctx context.Context, cfg *oauth2.Config, refreshToken string) (model.TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return model.TokenSet{}, &ExchangeError{Grant: "refresh_token", Err: err}
	}

	return model.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}
