package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuitionbook/core"
	"github.com/trezcool/tuitionbook/core/user"
)

var linkRegex = regexp.MustCompile(`uid=([^&\s]+)&token=([^\s"<]+)`)

// lastLink returns the uid & token of the link in the last email sent.
func (app *testApp) lastLink(t *testing.T) (uid, token string) {
	msgs := app.mailSvc.SentMessages()
	require.NotEmpty(t, msgs, "no email sent")
	m := linkRegex.FindStringSubmatch(msgs[len(msgs)-1].TextContent)
	require.Len(t, m, 3, "no link found in email")
	return m[1], m[2]
}

func Test_userApi_register(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Taken", "taken@test.com", user.RoleStudent, true)

	body := func(name, email, role, pwd, confirm string) []byte {
		return marshallObj(t, user.NewUser{Name: name, Email: email, Role: role, Password: pwd, PasswordConfirm: confirm})
	}

	tests := []struct {
		httpTest
		wantErrors []string
	}{
		{
			httpTest:   httpTest{name: "missing fields", body: []byte(`{}`), wantCode: http.StatusBadRequest},
			wantErrors: []string{"name", "email", "role", "password", "password_confirm"},
		},
		{
			httpTest:   httpTest{name: "invalid role", body: body("Bob", "bob@test.com", "admin", pwd, pwd), wantCode: http.StatusBadRequest},
			wantErrors: []string{"role"},
		},
		{
			httpTest:   httpTest{name: "passwords mismatch", body: body("Bob", "bob@test.com", user.RoleStudent, pwd, pwd+"x"), wantCode: http.StatusBadRequest},
			wantErrors: []string{"password_confirm"},
		},
		{
			httpTest:   httpTest{name: "weak password", body: body("Bob", "bob@test.com", user.RoleStudent, "12345678", "12345678"), wantCode: http.StatusBadRequest},
			wantErrors: []string{"password"},
		},
		{
			httpTest:   httpTest{name: "email taken", body: body("Bob", " TAKEN@test.com ", user.RoleStudent, pwd, pwd), wantCode: http.StatusBadRequest},
			wantErrors: []string{"email"},
		},
		{httpTest: httpTest{name: "ok", body: body(" Bob ", " Bob@Test.com", user.RoleTeacher, pwd, pwd), wantCode: http.StatusCreated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.mailSvc.Reset()
			tt.method, tt.path = http.MethodPost, "/api/users/register"
			rec := app.do(tt.httpTest)
			checkCode(t, tt.httpTest, rec)

			resp := unmarshallMap(t, rec.Body.Bytes())
			if tt.wantCode != http.StatusCreated {
				assert.Equal(t, false, resp["success"])
				errs, _ := resp["errors"].(map[string]interface{})
				for _, field := range tt.wantErrors {
					assert.Contains(t, errs, field)
				}
				assert.Empty(t, app.mailSvc.SentMessages())
				return
			}

			usr := resp["user"].(map[string]interface{})
			assert.Equal(t, "Bob", usr["name"])
			assert.Equal(t, "bob@test.com", usr["email"])
			assert.Equal(t, user.RoleTeacher, usr["role"])
			assert.Equal(t, false, usr["emailVerified"])
			assert.NotContains(t, usr, "passwordHash")

			msgs := app.mailSvc.SentMessages()
			require.Len(t, msgs, 1)
			assert.Equal(t, "bob@test.com", msgs[0].To[0].Address)
			assert.Equal(t, "verify_email", msgs[0].TemplateName)
		})
	}
}

func Test_userApi_verifyEmail(t *testing.T) {
	app := setup(t)

	rec := app.do(httpTest{
		method: http.MethodPost,
		path:   "/api/users/register",
		body:   marshallObj(t, user.NewUser{Name: "Kid", Email: "kid@test.com", Role: user.RoleStudent, Password: pwd, PasswordConfirm: pwd}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	uid, token := app.lastLink(t)

	login := httpTest{
		method: http.MethodPost,
		path:   "/api/users/login",
		body:   marshallObj(t, LoginRequest{Email: "kid@test.com", Password: pwd}),
	}

	// unverified users cannot log in
	login.wantCode = http.StatusForbidden
	checkCodeAndData(t, login.withData(marshallObj(t, errorResponse{Message: user.ErrEmailNotVerified.Error()})), app.do(login))

	tests := []httpTest{
		{name: "missing data", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "invalid uid", body: marshallObj(t, user.VerifyEmail{UID: "lol", Token: token}), wantCode: http.StatusBadRequest},
		{name: "invalid token", body: marshallObj(t, user.VerifyEmail{UID: uid, Token: "1-2-3"}), wantCode: http.StatusBadRequest},
		{name: "ok", body: marshallObj(t, user.VerifyEmail{UID: uid, Token: token}), wantCode: http.StatusOK},
		{name: "verifying twice is a no-op", body: marshallObj(t, user.VerifyEmail{UID: uid, Token: token}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/users/verify-email"
			checkCode(t, tt, app.do(tt))
		})
	}

	login.wantCode = http.StatusOK
	rec = app.do(login)
	checkCode(t, login, rec)
	resp := unmarshallMap(t, rec.Body.Bytes())
	assert.Equal(t, true, resp["success"])
	assert.NotEmpty(t, resp["token"])
}

func Test_userApi_resendVerification(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Unverified", "unverified@test.com", user.RoleStudent, false)
	app.createUser(t, "Verified", "verified@test.com", user.RoleStudent, true)

	tests := []struct {
		httpTest
		wantSent int
	}{
		{httpTest: httpTest{name: "invalid email", body: marshallObj(t, EmailRequest{Email: "lol"}), wantCode: http.StatusBadRequest}},
		{httpTest: httpTest{name: "unknown email", body: marshallObj(t, EmailRequest{Email: "ghost@test.com"}), wantCode: http.StatusOK}},
		{httpTest: httpTest{name: "already verified", body: marshallObj(t, EmailRequest{Email: "verified@test.com"}), wantCode: http.StatusOK}},
		{httpTest: httpTest{name: "unverified", body: marshallObj(t, EmailRequest{Email: " UNVERIFIED@test.com"}), wantCode: http.StatusOK}, wantSent: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.mailSvc.Reset()
			tt.method, tt.path = http.MethodPost, "/api/users/resend-verification"
			checkCode(t, tt.httpTest, app.do(tt.httpTest))
			assert.Len(t, app.mailSvc.SentMessages(), tt.wantSent)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Mrs Teacher", "teacher@test.com", user.RoleTeacher, true)

	errFailed := marshallObj(t, errorResponse{Message: user.ErrAuthenticationFailed.Error()})

	tests := []httpTest{
		{name: "missing data", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "unknown email", body: marshallObj(t, LoginRequest{Email: "ghost@test.com", Password: pwd}), wantCode: http.StatusUnauthorized, wantData: errFailed},
		{name: "wrong password", body: marshallObj(t, LoginRequest{Email: "teacher@test.com", Password: "nope"}), wantCode: http.StatusUnauthorized, wantData: errFailed},
		{name: "ok", body: marshallObj(t, LoginRequest{Email: " Teacher@Test.com ", Password: pwd}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/users/login"
			rec := app.do(tt)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCode(t, tt, rec)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp tokenResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			require.NotNil(t, resp.User)
			assert.Equal(t, usr.ID, resp.User.ID)
			assert.False(t, resp.User.LastLogin.IsZero())

			claims := new(Claims)
			_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(app.conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, usr.ID, claims.Subject)
			assert.Equal(t, user.RoleTeacher, claims.Role)
			assert.Equal(t, claims.IssuedAt, claims.OrigIssuedAt)
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Mrs Teacher", "teacher@test.com", user.RoleTeacher, true)

	tokenIssuedAt := func(iat time.Time) string {
		core.NowFunc = func() time.Time { return iat }
		defer func() { core.NowFunc = time.Now }()
		return app.getToken(t, usr)
	}

	// still valid, but issued past the refresh window
	oldIat := time.Now().Add(-app.conf.Server.JWTRefreshExpirationDelta - time.Minute)
	oldClaims := app.GetUserClaims(usr)
	oldClaims.OrigIssuedAt = oldIat.Unix()
	oldToken, err := app.GenerateToken(oldClaims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "expired token", token: tokenIssuedAt(time.Now().Add(-app.conf.Server.JWTExpirationDelta - time.Minute)),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errorResponse{Message: "invalid or expired jwt"}),
		},
		{name: "refresh expired", token: oldToken, wantCode: http.StatusForbidden, wantData: marshallObj(t, errorResponse{Message: errRefreshExpired.Error()})},
		{name: "ok", token: app.getToken(t, usr), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/users/token-refresh"
			rec := app.do(tt)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCode(t, tt, rec)
			resp := unmarshallMap(t, rec.Body.Bytes())
			assert.NotEmpty(t, resp["token"])
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Kid", "kid@test.com", user.RoleStudent, true)

	// unknown addresses get the same answer
	for _, email := range []string{"ghost@test.com", "kid@test.com"} {
		tt := httpTest{method: http.MethodPost, path: "/api/users/password-reset", body: marshallObj(t, EmailRequest{Email: email}), wantCode: http.StatusOK}
		checkCodeAndData(t, tt.withData(marshallObj(t, successResponse{Success: true, Message: msgPasswordResetSent})), app.do(tt))
	}
	require.Len(t, app.mailSvc.SentMessages(), 1)
	uid, token := app.lastLink(t)

	newPwd := "N3w-Passw0rd"
	confirm := func(uid, token, pwd, confirm string) []byte {
		return marshallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: pwd, PasswordConfirm: confirm})
	}

	tests := []httpTest{
		{name: "missing data", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "invalid token", body: confirm(uid, "1-2-3", newPwd, newPwd), wantCode: http.StatusBadRequest},
		{name: "passwords mismatch", body: confirm(uid, token, newPwd, "lol"), wantCode: http.StatusBadRequest},
		{name: "ok", body: confirm(uid, token, newPwd, newPwd), wantCode: http.StatusOK},
		{name: "token used", body: confirm(uid, token, newPwd+"!", newPwd+"!"), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/users/password-reset-confirm"
			checkCode(t, tt, app.do(tt))
		})
	}

	_, err := app.userSvc.Authenticate(context.Background(), usr.Email, newPwd)
	assert.NoError(t, err)
}

func Test_userApi_me(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Kid", "kid@test.com", user.RoleStudent, true)
	token := app.getToken(t, usr)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "bad token", token: "lol", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errorResponse{Message: "invalid or expired jwt"})},
		{name: "ok", token: token, wantCode: http.StatusOK, wantData: marshallObj(t, userResponse{Success: true, User: usr})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.path = "/api/users/me"
			checkCodeAndData(t, tt, app.do(tt))
		})
	}

	// the token of a deleted user is useless
	other := setup(t)
	tt := httpTest{path: "/api/users/me", token: token, wantCode: http.StatusUnauthorized}
	checkCodeAndData(t, tt.withData(marshallObj(t, errorResponse{Message: errUnauthenticated.Error()})), other.do(tt))
}
