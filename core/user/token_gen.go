package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	nowFunc = time.Now // mockable

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// tokenGenerator makes single purpose, time limited tokens for a User.
// A token stays valid as long as the User attributes hashed by hashValue do not change,
// so a used token dies with the state change it triggered.
type tokenGenerator struct {
	salt      []byte
	secretKey []byte
	timeout   time.Duration
	hashValue func(usr User, ts int) []byte
}

func newEmailVerificationTokenGenerator(secretKey string, timeout time.Duration) *tokenGenerator {
	return &tokenGenerator{
		salt:      []byte("tuitionbook.core.user.email_verification"),
		secretKey: []byte(secretKey),
		timeout:   timeout,
		hashValue: func(usr User, ts int) []byte {
			var val bytes.Buffer
			val.WriteString(usr.ID)
			val.WriteString(usr.Email)
			val.WriteString(strconv.FormatBool(usr.EmailVerified))
			val.WriteString(strconv.Itoa(ts))
			return val.Bytes()
		},
	}
}

func newPasswordResetTokenGenerator(secretKey string, timeout time.Duration) *tokenGenerator {
	return &tokenGenerator{
		salt:      []byte("tuitionbook.core.user.password_reset"),
		secretKey: []byte(secretKey),
		timeout:   timeout,
		hashValue: func(usr User, ts int) []byte {
			var val bytes.Buffer
			val.WriteString(usr.ID)
			val.Write(usr.PasswordHash)
			if !usr.LastLogin.IsZero() {
				val.WriteString(usr.LastLogin.UTC().Format(time.RFC3339Nano))
			}
			val.WriteString(strconv.Itoa(ts))
			return val.Bytes()
		},
	}
}

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// decodeUID base64 decodes given UID
func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// makeToken generates a token for a given User.
func (gen *tokenGenerator) makeToken(usr User) string {
	return gen.makeTokenWithTimestamp(usr, numDaysSince2001(nowFunc()))
}

// verifyToken checks that a token for a given User is valid.
func (gen *tokenGenerator) verifyToken(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}
	tsB32 := parts[0]

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(tsB32)
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that token has not been tampered with
	newToken := gen.makeTokenWithTimestamp(usr, ts)
	if subtle.ConstantTimeCompare([]byte(newToken), []byte(token)) == 0 {
		return errInvalidToken
	}

	// check that the timestamp is within limit
	if (numDaysSince2001(nowFunc()) - ts) > int(gen.timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func (gen *tokenGenerator) makeTokenWithTimestamp(usr User, ts int) string {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	return fmt.Sprintf("%s-%s", tsB32, gen.sign(gen.hashValue(usr, ts)))
}

func (gen *tokenGenerator) sign(val []byte) string {
	key := sha256.Sum256(append(append([]byte{}, gen.salt...), gen.secretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write(val) // never returns an error
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}
