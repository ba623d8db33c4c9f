package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/Beccio00/homeworks-web-app/apps/api/echo"
	"github.com/Beccio00/homeworks-web-app/core"
	"github.com/Beccio00/homeworks-web-app/core/task"
	"github.com/Beccio00/homeworks-web-app/core/user"
	"github.com/Beccio00/homeworks-web-app/services/logger"
	"github.com/Beccio00/homeworks-web-app/storage/database/inmem"
	"github.com/Beccio00/homeworks-web-app/storage/database/sqlx"
	"github.com/Beccio00/homeworks-web-app/tests"
)

var (
	app      *echoapi.Server
	usrRepo  user.Repository
	taskRepo task.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func testConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		AppName:   "Compiti",
		TestMode:  true,
		SecretKey: "t3st-s3cr3t",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
	}
}

func newServer(conf *core.Config) *echoapi.Server {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	task.InitValidators(validate, translator)

	logger := logsvc.NewNopLogger()
	return echoapi.NewServer(echoapi.Deps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    user.NewService(usrRepo),
		TaskSvc:    task.NewService(taskRepo, usrRepo, logger),
		Validate:   validate,
		Translator: translator,
	})
}

// setup serves the API over fresh in-memory repositories.
func setup(t *testing.T) {
	t.Helper()
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	taskRepo = inmemdb.NewTaskRepository(db)
	app = newServer(testConfig())
}

// setupSQL serves the API over a migrated in-memory sqlite database.
func setupSQL(t *testing.T) {
	t.Helper()
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)
	taskRepo = sqlxrepos.NewTaskRepository(db)
	app = newServer(testConfig())
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func serve(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	token, err := app.GenerateToken(app.UserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

// checkCodeAndData compares the response body only when tt.wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; data = %v", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
			if check, ok := tt.extra.(func(*testing.T, *httptest.ResponseRecorder)); ok {
				check(t, rec)
			}
		})
	}
}

func Test_home(t *testing.T) {
	setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Compiti API!", rec.Body.String())
}

func TestNewServer(t *testing.T) {
	assert.Panics(t, func() { echoapi.NewServer(echoapi.Deps{}) })
}
