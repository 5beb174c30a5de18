package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/mail-engine/internal/inbox"
	"github.com/nhle/mail-engine/internal/model"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// client is a minimal Microsoft Graph REST client scoped to the calls the
// inbox adapter makes.
type client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func newClient(baseURL, accessToken string) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// get performs an authenticated GET against a Graph path and decodes the
// JSON response into out. Non-2xx responses become UpstreamErrors carrying
// the Graph error envelope when one is present.
func (c *client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.upstreamError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *client) upstreamError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var envelope graphErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
		if envelope.Error.Code != "" {
			message = envelope.Error.Code + ": " + message
		}
	}

	return &inbox.UpstreamError{
		Provider: model.ProviderOutlook,
		Status:   status,
		Message:  message,
		Hint:     hintFor(status, message),
	}
}

// hintFor maps recognized Graph failures to an advisory remediation hint.
func hintFor(status int, message string) string {
	text := strings.ToLower(message)
	switch {
	case status == http.StatusUnauthorized:
		return "the access token was rejected; re-run login"
	case status == http.StatusForbidden ||
		strings.Contains(text, "accessdenied") ||
		strings.Contains(text, "insufficient"):
		return "the app registration may be missing Mail.Read delegated permission"
	case strings.Contains(text, "mailboxnotenabled") ||
		strings.Contains(text, "resourcenotfound"):
		return "this account has no Exchange Online mailbox"
	default:
		return ""
	}
}
