package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/memoraid/memoraid/core"
)

var (
	salt                      = []byte("memoraid.core.user.token_gen")
	secretKey                 []byte
	passwordResetTimeoutDelta = 3 * 24 * time.Hour

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(usr.ID, 10)))
}

func decodeUID(uid string) (int64, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(idBytes), 10, 64)
}

// makeToken returns a password reset token for usr: "<issued unix, base36>.<signature>".
func makeToken(usr User) string {
	return tokenAt(usr, core.NowFunc().Unix())
}

// verifyToken checks the signature and age of a password reset token.
func verifyToken(usr User, token string) error {
	tsPart, _, found := strings.Cut(token, ".")
	if !found {
		return errInvalidToken
	}
	issued, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(tokenAt(usr, issued)), []byte(token)) {
		return errInvalidToken
	}
	if core.NowFunc().Sub(time.Unix(issued, 0)) > passwordResetTimeoutDelta {
		return errTokenExpired
	}
	return nil
}

func tokenAt(usr User, issued int64) string {
	return strconv.FormatInt(issued, 36) + "." + sign(usr, issued)
}

// sign covers the password hash and last login, so a reset or a new login invalidates older tokens.
func sign(usr User, issued int64) string {
	key := sha256.Sum256(append(salt[:len(salt):len(salt)], secretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(strconv.FormatInt(usr.ID, 10)))
	h.Write(usr.PasswordHash)
	if usr.LastLogin.Valid {
		h.Write([]byte(strconv.FormatInt(usr.LastLogin.Time.Unix(), 10)))
	}
	h.Write([]byte(strconv.FormatInt(issued, 10)))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
