package echoapi_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beccio00/homeworks-web-app/apps/api/echo"
	"github.com/Beccio00/homeworks-web-app/core/user"
	"github.com/Beccio00/homeworks-web-app/tests"
)

func Test_userApi_login(t *testing.T) {
	setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Luigi", "De Russis", "luigi", "pwd12345", user.RoleTeacher, true)
	testutil.CreateUser(t, usrRepo, "Zoe", "Bianchi", "zoe", "pwd12345", user.RoleStudent, false)

	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})
	login := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "missing credentials", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{name: "malformed body", body: []byte(`{"username":`), wantCode: http.StatusBadRequest},
		{name: "unknown user", body: login("mario", "pwd12345"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", body: login("luigi", "pwd54321"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{
			name: "inactive user", body: login("zoe", "pwd12345"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "logged in", body: login(" LUIGI ", "pwd12345"),
			extra: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp echoapi.LoginResponse
				unmarshal(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
				require.NotNil(t, resp.User)
				assert.Equal(t, teacher.ID, resp.User.ID)
				assert.False(t, resp.User.LastLogin.IsZero(), "LastLogin not set")

				rec = serve(http.MethodGet, "/v1/users/me", resp.Token)
				assert.Equal(t, http.StatusOK, rec.Code)
			},
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runHTTPTests(t, tests)
}

func Test_userApi_me(t *testing.T) {
	setup(t)

	student := testutil.CreateUser(t, usrRepo, "Anna", "Alberti", "anna", "", user.RoleStudent, true)
	ghost := user.User{ID: "ghost", Username: "ghost", Role: user.RoleStudent}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Invalid token", token: "not.a.jwt", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "Unknown user", token: getToken(t, ghost), wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{name: "Current user", token: getToken(t, student), wantData: marchallObj(t, student)},
	}
	for i := range tests {
		tests[i].path = "/v1/users/me"
	}
	runHTTPTests(t, tests)
}

func Test_userApi_refreshToken(t *testing.T) {
	setup(t)

	naughty := testutil.CreateUser(t, usrRepo, "Nino", "Neri", "nino", "", user.RoleStudent, false)
	student := testutil.CreateUser(t, usrRepo, "Anna", "Alberti", "anna", "", user.RoleStudent, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    "Compiti",
			Subject:   student.ID,
			ExpiresAt: now.Add(time.Hour).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-48 * time.Hour).Unix(), // older than the refresh window
		Username:     student.Username,
		Role:         student.Role,
		IsStudent:    true,
	}
	unrefreshableToken, err := app.GenerateToken(unrefreshableClaims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{
			name: "Token refreshed", token: getToken(t, student),
			extra: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp echoapi.LoginResponse
				unmarshal(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
				assert.Nil(t, resp.User)
			},
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/token-refresh"
	}
	runHTTPTests(t, tests)
}

func Test_userApi_queryStudents(t *testing.T) {
	setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Luigi", "De Russis", "luigi", "", user.RoleTeacher, true)
	zoe := testutil.CreateUser(t, usrRepo, "Zoe", "Bianchi", "zoe", "", user.RoleStudent, true)
	ugo := testutil.CreateUser(t, usrRepo, "Ugo", "Abate", "ugo", "", user.RoleStudent, true)
	amy := testutil.CreateUser(t, usrRepo, "Amy", "Bianchi", "amy", "", user.RoleStudent, true)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Teacher required", token: getToken(t, zoe), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "All students", token: getToken(t, teacher),
			wantData: marchallList(t, ugo.Profile(), amy.Profile(), zoe.Profile()),
		},
		{name: "Trailing slash", path: "/v1/students/", token: getToken(t, teacher), wantData: marchallList(t, ugo.Profile(), amy.Profile(), zoe.Profile())},
	}
	for i := range tests {
		if tests[i].path == "" {
			tests[i].path = "/v1/students"
		}
	}
	runHTTPTests(t, tests)
}
