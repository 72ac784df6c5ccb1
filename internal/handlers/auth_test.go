package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, app *testApp, email, password string) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/connect", nil)
	creds := base64.StdEncoding.EncodeToString([]byte(email + ":" + password))
	req.Header.Set("Authorization", "Basic "+creds)
	rec := app.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotEmpty(t, got.Token)
	return got.Token
}

func TestConnectDisconnect(t *testing.T) {
	app := newTestApp()
	register(t, app, "bob@x.com", "pw123")

	token := connect(t, app, "bob@x.com", "pw123")

	// The session resolves while active...
	me := httptest.NewRequest("GET", "/users/me", nil)
	me.Header.Set("X-Token", token)
	require.Equal(t, http.StatusOK, app.do(me).Code)

	// ...and no longer after logout.
	out := httptest.NewRequest("GET", "/disconnect", nil)
	out.Header.Set("X-Token", token)
	assert.Equal(t, http.StatusNoContent, app.do(out).Code)

	me = httptest.NewRequest("GET", "/users/me", nil)
	me.Header.Set("X-Token", token)
	assert.Equal(t, http.StatusUnauthorized, app.do(me).Code)
}

func TestConnectBadCredentials(t *testing.T) {
	app := newTestApp()
	register(t, app, "bob@x.com", "pw123")

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not basic", "Bearer zzz"},
		{"wrong password", "Basic " + base64.StdEncoding.EncodeToString([]byte("bob@x.com:nope"))},
		{"unknown user", "Basic " + base64.StdEncoding.EncodeToString([]byte("eve@x.com:pw123"))},
		{"empty password", "Basic " + base64.StdEncoding.EncodeToString([]byte("bob@x.com:"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/connect", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := app.do(req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
		})
	}
}

func TestDisconnectWithoutSession(t *testing.T) {
	app := newTestApp()

	rec := app.do(httptest.NewRequest("GET", "/disconnect", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/disconnect", nil)
	req.Header.Set("X-Token", "expired-or-bogus")
	assert.Equal(t, http.StatusUnauthorized, app.do(req).Code)
}
