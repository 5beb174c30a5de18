package model

// Placeholder values used when a provider response omits a field.
const (
	FallbackSubject = "(no subject)"
	FallbackSender  = "(unknown sender)"
	FallbackDate    = "(no date)"
	FallbackPreview = "(no preview)"
	FallbackAccount = "(unknown account)"
)

// MailMessage is a normalized inbox message. Every field is always
// non-empty; providers that omit a field get the matching fallback.
type MailMessage struct {
	Subject string
	From    string
	Date    string
	Body    string
}

// LoginResult is the externally visible outcome of a successful login or
// session restore: the authenticated account and a bounded inbox summary.
type LoginResult struct {
	Provider Provider
	Account  string
	Messages []MailMessage
}
