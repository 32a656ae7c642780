package httpx_test

import (
	"testing"

	"github.com/keylineid/keyline-go/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestParseWWWAuthenticate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		want    httpx.WWWAuthenticateParams
		wantErr bool
	}{
		{
			name:   "bare scheme",
			header: "Bearer",
			want:   httpx.WWWAuthenticateParams{Scheme: "Bearer"},
		},
		{
			name:   "bearer with realm",
			header: `Bearer realm="keyline"`,
			want:   httpx.WWWAuthenticateParams{Scheme: "Bearer", Realm: "keyline"},
		},
		{
			name:   "bearer with error",
			header: `Bearer realm="keyline", error="invalid_token", error_description="token expired"`,
			want: httpx.WWWAuthenticateParams{
				Scheme:           "Bearer",
				Realm:            "keyline",
				Error:            "invalid_token",
				ErrorDescription: "token expired",
			},
		},
		{
			name:   "insufficient scope",
			header: `Bearer error="insufficient_scope", scope="openid profile"`,
			want: httpx.WWWAuthenticateParams{
				Scheme: "Bearer",
				Error:  "insufficient_scope",
				Scope:  "openid profile",
			},
		},
		{
			name:   "mixed-case parameter names",
			header: `Bearer Realm="keyline", ERROR="invalid_token"`,
			want: httpx.WWWAuthenticateParams{
				Scheme: "Bearer",
				Realm:  "keyline",
				Error:  "invalid_token",
			},
		},
		{
			name:   "unknown parameters ignored",
			header: `Bearer realm="keyline", nonce="abc123"`,
			want:   httpx.WWWAuthenticateParams{Scheme: "Bearer", Realm: "keyline"},
		},
		{
			name:   "non-bearer scheme",
			header: `Basic realm="admin"`,
			want:   httpx.WWWAuthenticateParams{Scheme: "Basic", Realm: "admin"},
		},
		{
			name:    "empty header",
			header:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := httpx.ParseWWWAuthenticate(tt.header)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, *got)
		})
	}
}

func TestIsBearerChallenge(t *testing.T) {
	t.Parallel()

	bearer, err := httpx.ParseWWWAuthenticate(`Bearer realm="keyline"`)
	require.NoError(t, err)
	require.True(t, bearer.IsBearerChallenge())

	basic, err := httpx.ParseWWWAuthenticate(`Basic realm="admin"`)
	require.NoError(t, err)
	require.False(t, basic.IsBearerChallenge())
}
