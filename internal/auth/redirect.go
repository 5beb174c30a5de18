package auth

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// RedirectTarget is the decomposed loopback redirect endpoint: the address
// to bind and the exact path the callback must hit.
type RedirectTarget struct {
	Host string
	Port int
	Path string
}

// Addr returns the host:port to bind the callback listener on.
func (t RedirectTarget) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ResolveRedirect validates and decomposes the configured redirect URI.
// It runs before any listener is bound so misconfiguration surfaces
// immediately rather than as a bind failure. The URI must be plain HTTP on
// a loopback host with an explicit port and a non-root path.
func ResolveRedirect(raw string) (RedirectTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return RedirectTarget{}, &ConfigurationError{
			Reason: fmt.Sprintf("cannot parse redirect URI %q: %v", raw, err),
		}
	}

	if u.Scheme != "http" {
		return RedirectTarget{}, &ConfigurationError{
			Reason: fmt.Sprintf("redirect URI scheme must be http, got %q", u.Scheme),
		}
	}

	host := u.Hostname()
	if host != "127.0.0.1" && host != "localhost" {
		return RedirectTarget{}, &ConfigurationError{
			Reason: fmt.Sprintf("redirect URI host must be loopback, got %q", host),
		}
	}

	portStr := u.Port()
	if portStr == "" {
		return RedirectTarget{}, &ConfigurationError{
			Reason: "redirect URI must carry an explicit port",
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return RedirectTarget{}, &ConfigurationError{
			Reason: fmt.Sprintf("redirect URI port %q is not a number", portStr),
		}
	}

	path := u.EscapedPath()
	if path == "" || path == "/" {
		return RedirectTarget{}, &ConfigurationError{
			Reason: "redirect URI path must not be empty or root",
		}
	}

	return RedirectTarget{Host: host, Port: port, Path: path}, nil
}
