package inbox

import (
	"context"
	"fmt"

	"github.com/nhle/mail-engine/internal/model"
)

// FetchLimit caps how many messages a single inbox fetch returns.
const FetchLimit = 20

// Fetcher defines the contract that every provider inbox adapter must
// implement: turn an access token into a normalized, bounded inbox summary.
type Fetcher interface {
	// Provider returns the provider tag this adapter serves.
	Provider() model.Provider

	// FetchInbox retrieves the account identity and a capped list of
	// normalized messages using the given access token.
	FetchInbox(ctx context.Context, accessToken string) (*model.LoginResult, error)
}

// UpstreamError reports a non-success response from an inbox or identity
// call. Hint carries an advisory remediation note when the upstream error
// matched a known condition; it is embedded in the message, not a separate
// channel the caller must branch on.
type UpstreamError struct {
	Provider model.Provider
	Status   int
	Message  string
	Hint     string
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s API error (%d): %s", e.Provider.Label(), e.Status, e.Message)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}
