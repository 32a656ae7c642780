package keyline_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keylineid/keyline-go/pkg/keyline"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires a base URL", func(t *testing.T) {
		_, err := keyline.New(keyline.Config{})

		var cfgErr *keyline.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "BaseURL", cfgErr.Field)
	})

	t.Run("rejects plain HTTP outside loopback", func(t *testing.T) {
		_, err := keyline.New(keyline.Config{BaseURL: "http://id.example.com"})

		var insecureErr *keyline.InsecureURLError
		require.ErrorAs(t, err, &insecureErr)
	})

	t.Run("rejects loopback HTTP without the carve-out", func(t *testing.T) {
		_, err := keyline.New(keyline.Config{BaseURL: "http://127.0.0.1:8080"})

		var insecureErr *keyline.InsecureURLError
		require.ErrorAs(t, err, &insecureErr)
	})

	t.Run("allows loopback HTTP when opted in", func(t *testing.T) {
		c, err := keyline.New(keyline.Config{
			BaseURL:                "http://localhost:8080",
			AllowInsecureLocalhost: true,
		})
		require.NoError(t, err)
		require.Equal(t, "http://localhost:8080", c.BaseURL())
	})

	t.Run("rejects non-HTTP schemes", func(t *testing.T) {
		_, err := keyline.New(keyline.Config{BaseURL: "ftp://id.example.com"})

		var insecureErr *keyline.InsecureURLError
		require.ErrorAs(t, err, &insecureErr)
	})

	t.Run("trims exactly one trailing slash", func(t *testing.T) {
		c, err := keyline.New(keyline.Config{BaseURL: "https://id.example.com/"})
		require.NoError(t, err)
		require.Equal(t, "https://id.example.com", c.BaseURL())
	})

	t.Run("accepts a zero timeout", func(t *testing.T) {
		c, err := keyline.New(keyline.Config{BaseURL: "https://id.example.com"})
		require.NoError(t, err)
		require.NotNil(t, c)
	})
}

func TestTokenSlot(t *testing.T) {
	t.Parallel()

	c, err := keyline.New(keyline.Config{BaseURL: "https://id.example.com"})
	require.NoError(t, err)

	require.False(t, c.IsAuthenticated())
	require.Empty(t, c.Token())

	c.SetAccessToken("persisted-token")
	require.True(t, c.IsAuthenticated())
	require.Equal(t, "persisted-token", c.Token())

	// ClearAuth is purely local; nothing is revoked server-side.
	c.ClearAuth()
	require.False(t, c.IsAuthenticated())
	require.Empty(t, c.Token())
}
