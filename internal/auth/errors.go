package auth

import (
	"fmt"
	"time"
)

// ConfigurationError reports a redirect URI that cannot be used for a
// loopback flow. It is fatal to the attempt and surfaced before any socket
// is bound.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "redirect configuration invalid: " + e.Reason
}

// BindError reports a failure to bind the loopback listener, most likely a
// port conflict. The attempt is not retried automatically.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("cannot bind callback listener on %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// TimeoutError reports that no callback connection arrived in time.
type TimeoutError struct {
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no authorization callback received within %s", e.Wait)
}

// ParseError reports an unreadable or malformed callback request.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "cannot parse callback request: " + e.Reason
}

// PathMismatchError reports a callback request for a path other than the
// configured redirect path.
type PathMismatchError struct {
	Got  string
	Want string
}

func (e *PathMismatchError) Error() string {
	return fmt.Sprintf("callback path %q does not match configured %q", e.Got, e.Want)
}

// DeniedError reports that the provider returned an error on the redirect,
// typically because the user declined the consent screen.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "authorization denied: " + e.Reason
}

// CsrfMismatchError reports a callback whose state parameter does not match
// the token issued for this flow — a spoofed or stale callback.
type CsrfMismatchError struct{}

func (e *CsrfMismatchError) Error() string {
	return "callback state does not match the issued CSRF token"
}

// MissingCodeError reports a callback that carried neither an authorization
// code nor an error parameter.
type MissingCodeError struct{}

func (e *MissingCodeError) Error() string {
	return "callback carried no authorization code"
}

// ExchangeError reports a failed token endpoint exchange, for either the
// authorization-code or the refresh-token grant.
type ExchangeError struct {
	Grant string // "authorization_code" or "refresh_token"
	Err   error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s exchange failed: %v", e.Grant, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }
