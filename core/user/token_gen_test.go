package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
)

func TestMakeVerifyToken(t *testing.T) {
	secretKey = []byte("secret")
	passwordResetTimeoutDelta = 3 * 24 * time.Hour

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = time.Now })

	usr := User{ID: 1, Email: "t@test.test", IsActive: true, LastLogin: null.TimeFrom(now.Add(-time.Hour))}
	require.NoError(t, usr.SetPassword("pwd"))

	validToken := makeToken(usr)

	core.NowFunc = func() time.Time { return now.Add(-passwordResetTimeoutDelta - time.Minute) }
	expiredToken := makeToken(usr)
	core.NowFunc = func() time.Time { return now }

	relogged := usr
	relogged.LastLogin = null.TimeFrom(now)

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "no separator", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "bad timestamp", usr: usr, token: "??.sig", wantErr: errInvalidToken},
		{name: "forged signature", usr: usr, token: "1a2b.sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "user logged in since", usr: relogged, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, verifyToken(tt.usr, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	id, err := decodeUID(EncodeUID(User{ID: 42}))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = decodeUID("!!")
	assert.Error(t, err)
}
