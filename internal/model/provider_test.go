package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("google")
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, p)

	p, err = ParseProvider("outlook")
	require.NoError(t, err)
	assert.Equal(t, ProviderOutlook, p)

	_, err = ParseProvider("imap")
	assert.Error(t, err)

	_, err = ParseProvider("Google")
	assert.Error(t, err, "provider names are case-sensitive")
}

func TestProviderLabel(t *testing.T) {
	assert.Equal(t, "Google", ProviderGoogle.Label())
	assert.Equal(t, "Outlook", ProviderOutlook.Label())
}

func TestForProvider(t *testing.T) {
	google := &ProviderCredentials{ClientID: "g"}
	settings := SavedOAuthSettings{Google: google}

	assert.Equal(t, google, settings.ForProvider(ProviderGoogle))
	assert.Nil(t, settings.ForProvider(ProviderOutlook))
	assert.Nil(t, settings.ForProvider("imap"))
}
