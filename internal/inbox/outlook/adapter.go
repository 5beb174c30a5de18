package outlook

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/nhle/mail-engine/internal/inbox"
	"github.com/nhle/mail-engine/internal/model"
)

// Adapter fetches a bounded Outlook inbox summary through Microsoft Graph:
// identity from /me, then one /me/messages call selecting only the fields
// the summary needs.
type Adapter struct {
	// baseURL overrides the Graph base URL; empty means production.
	baseURL string
}

// New returns an Adapter talking to the production Graph endpoint.
func New() *Adapter {
	return &Adapter{}
}

// NewWithBaseURL returns an Adapter pointed at an alternate Graph base URL.
func NewWithBaseURL(baseURL string) *Adapter {
	return &Adapter{baseURL: baseURL}
}

// Provider returns the provider tag this adapter serves.
func (a *Adapter) Provider() model.Provider {
	return model.ProviderOutlook
}

// FetchInbox retrieves the account identity and up to inbox.FetchLimit
// messages, newest first, normalized with placeholder fallbacks.
func (a *Adapter) FetchInbox(ctx context.Context, accessToken string) (*model.LoginResult, error) {
	c := newClient(a.baseURL, accessToken)

	var user graphUser
	if err := c.get(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}

	account := user.Mail
	if account == "" {
		account = user.UserPrincipalName
	}
	if account == "" {
		account = model.FallbackAccount
	}

	query := url.Values{}
	query.Set("$top", strconv.Itoa(inbox.FetchLimit))
	query.Set("$select", "subject,from,receivedDateTime,bodyPreview")
	query.Set("$orderby", "receivedDateTime desc")

	var list graphMessageList
	if err := c.get(ctx, "/me/messages", query, &list); err != nil {
		return nil, err
	}

	messages := make([]model.MailMessage, 0, len(list.Value))
	for _, msg := range list.Value {
		messages = append(messages, convertMessage(msg))
	}

	return &model.LoginResult{
		Provider: model.ProviderOutlook,
		Account:  account,
		Messages: messages,
	}, nil
}

func convertMessage(msg graphMessage) model.MailMessage {
	out := model.MailMessage{
		Subject: model.FallbackSubject,
		From:    model.FallbackSender,
		Date:    model.FallbackDate,
		Body:    model.FallbackPreview,
	}

	if msg.Subject != "" {
		out.Subject = msg.Subject
	}
	if msg.From != nil {
		switch {
		case msg.From.EmailAddress.Name != "" && msg.From.EmailAddress.Address != "":
			out.From = msg.From.EmailAddress.Name + " <" + msg.From.EmailAddress.Address + ">"
		case msg.From.EmailAddress.Address != "":
			out.From = msg.From.EmailAddress.Address
		case msg.From.EmailAddress.Name != "":
			out.From = msg.From.EmailAddress.Name
		}
	}
	if msg.ReceivedDateTime != "" {
		out.Date = formatReceived(msg.ReceivedDateTime)
	}
	if msg.BodyPreview != "" {
		out.Body = msg.BodyPreview
	}

	return out
}

// formatReceived renders a Graph RFC 3339 timestamp in mail-header style.
// Unparseable values pass through unchanged rather than losing information.
func formatReceived(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format(time.RFC1123Z)
}
