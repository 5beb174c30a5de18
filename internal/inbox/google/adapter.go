package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/nhle/mail-engine/internal/inbox"
	"github.com/nhle/mail-engine/internal/model"
)

// Adapter fetches a bounded Gmail inbox summary: identity via the OAuth2
// userinfo endpoint, then a capped message id list with one metadata round
// trip per message.
type Adapter struct {
	// endpoint overrides the Google API base URL; empty means production.
	endpoint string
}

// New returns an Adapter talking to the production Google APIs.
func New() *Adapter {
	return &Adapter{}
}

// NewWithEndpoint returns an Adapter pointed at an alternate API base URL.
func NewWithEndpoint(endpoint string) *Adapter {
	return &Adapter{endpoint: endpoint}
}

// Provider returns the provider tag this adapter serves.
func (a *Adapter) Provider() model.Provider {
	return model.ProviderGoogle
}

// FetchInbox retrieves the account email and up to inbox.FetchLimit
// messages, normalized with placeholder fallbacks.
func (a *Adapter) FetchInbox(ctx context.Context, accessToken string) (*model.LoginResult, error) {
	opts := a.clientOptions(accessToken)

	userSvc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("building userinfo client: %w", err)
	}

	info, err := userSvc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, a.wrapError("fetching identity", err)
	}

	account := info.Email
	if account == "" {
		account = model.FallbackAccount
	}

	mailSvc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("building gmail client: %w", err)
	}

	list, err := mailSvc.Users.Messages.List("me").
		MaxResults(inbox.FetchLimit).
		Context(ctx).Do()
	if err != nil {
		return nil, a.wrapError("listing messages", err)
	}

	messages := make([]model.MailMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := mailSvc.Users.Messages.Get("me", ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "Date").
			Context(ctx).Do()
		if err != nil {
			return nil, a.wrapError(fmt.Sprintf("fetching message %s", ref.Id), err)
		}
		messages = append(messages, convertMessage(msg))
	}

	return &model.LoginResult{
		Provider: model.ProviderGoogle,
		Account:  account,
		Messages: messages,
	}, nil
}

func (a *Adapter) clientOptions(accessToken string) []option.ClientOption {
	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if a.endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.endpoint))
	}
	return opts
}

// wrapError converts a Google API failure into an UpstreamError, attaching
// a remediation hint when the structured error envelope matches a known
// condition.
func (a *Adapter) wrapError(op string, err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	message := firstLine(apiErr.Message)
	if message == "" {
		message = firstLine(string(apiErr.Body))
	}

	return fmt.Errorf("%s: %w", op, &inbox.UpstreamError{
		Provider: model.ProviderGoogle,
		Status:   apiErr.Code,
		Message:  message,
		Hint:     hintFor(message),
	})
}

// hintFor maps recognized Gmail error text to an advisory remediation hint.
func hintFor(message string) string {
	text := strings.ToLower(message)
	switch {
	case strings.Contains(text, "has not been used") ||
		strings.Contains(text, "is disabled") ||
		strings.Contains(text, "accessnotconfigured"):
		return "enable the Gmail API for this project in the Google Cloud console"
	case strings.Contains(text, "insufficient"):
		return "re-run login to grant read-only Gmail access"
	case strings.Contains(text, "access_denied") || strings.Contains(text, "blocked"):
		return "the OAuth consent screen may need test users or app verification"
	default:
		return ""
	}
}

func convertMessage(msg *gmail.Message) model.MailMessage {
	out := model.MailMessage{
		Subject: model.FallbackSubject,
		From:    model.FallbackSender,
		Date:    model.FallbackDate,
		Body:    model.FallbackPreview,
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			if h.Value == "" {
				continue
			}
			switch {
			case strings.EqualFold(h.Name, "Subject"):
				out.Subject = h.Value
			case strings.EqualFold(h.Name, "From"):
				out.From = h.Value
			case strings.EqualFold(h.Name, "Date"):
				out.Date = h.Value
			}
		}
	}

	if msg.Snippet != "" {
		out.Body = msg.Snippet
	}

	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
