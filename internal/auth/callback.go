package auth

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"
)

// CallbackListener captures exactly one OAuth redirect on the local machine.
// It is bound for the lifetime of a single flow attempt and must be closed
// on every exit path.
type CallbackListener struct {
	ln            *net.TCPListener
	target        RedirectTarget
	acceptTimeout time.Duration
	readTimeout   time.Duration
}

// ListenCallback binds the loopback listener for one flow attempt. Binding
// happens before the browser opens so the redirect can never race the
// listener. A bind failure (likely a port conflict) is fatal to the attempt.
func ListenCallback(target RedirectTarget, acceptTimeout, readTimeout time.Duration) (*CallbackListener, error) {
	ln, err := net.Listen("tcp", target.Addr())
	if err != nil {
		return nil, &BindError{Addr: target.Addr(), Err: err}
	}

	return &CallbackListener{
		ln:            ln.(*net.TCPListener),
		target:        target,
		acceptTimeout: acceptTimeout,
		readTimeout:   readTimeout,
	}, nil
}

// Port returns the actual bound port. When the configured redirect URI uses
// port 0 the kernel picks one; loopback OAuth clients accept any port.
func (l *CallbackListener) Port() int {
	return l.ln.Addr().(*net.TCPAddr).Port
}

// Close releases the listener socket. Safe to call more than once.
func (l *CallbackListener) Close() error {
	return l.ln.Close()
}

// Await blocks until one redirect request arrives or the accept timeout
// elapses, validates it against the issued CSRF state, replies with a
// minimal plaintext response, and returns the authorization code.
func (l *CallbackListener) Await(state string) (string, error) {
	if err := l.ln.SetDeadline(time.Now().Add(l.acceptTimeout)); err != nil {
		return "", fmt.Errorf("setting accept deadline: %w", err)
	}

	conn, err := l.ln.Accept()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return "", &TimeoutError{Wait: l.acceptTimeout}
		}
		return "", fmt.Errorf("accepting callback connection: %w", err)
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(l.readTimeout)); err != nil {
		return "", fmt.Errorf("setting read deadline: %w", err)
	}

	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return "", &ParseError{Reason: err.Error()}
	}

	if req.URL.Path != l.target.Path {
		respond(conn, http.StatusBadRequest, "Unexpected callback path.")
		return "", &PathMismatchError{Got: req.URL.Path, Want: l.target.Path}
	}

	query := req.URL.Query()

	if reason := query.Get("error"); reason != "" {
		respond(conn, http.StatusBadRequest, "Authorization was denied. You can close this tab.")
		return "", &DeniedError{Reason: reason}
	}

	if query.Get("state") != state {
		respond(conn, http.StatusBadRequest, "State mismatch. Please retry the login.")
		return "", &CsrfMismatchError{}
	}

	code := query.Get("code")
	if code == "" {
		respond(conn, http.StatusBadRequest, "No authorization code received.")
		return "", &MissingCodeError{}
	}

	respond(conn, http.StatusOK, "Login complete. You can close this tab and return to the app.")
	return code, nil
}

// respond writes a minimal plaintext HTTP response and lets the deferred
// close tear the connection down. Write errors are ignored; the flow outcome
// is already decided.
func respond(conn net.Conn, status int, body string) {
	fmt.Fprintf(conn,
		"HTTP/1.1 %d %s\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, http.StatusText(status), len(body), body,
	)
}
