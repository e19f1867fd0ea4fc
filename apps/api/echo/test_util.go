package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpPayloadErr struct {
	Payload string `json:"payload"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type testEnv struct {
	server   Server
	conf     *core.Config
	usrRepo  user.Repository
	usrSvc   *user.Service
	classSvc *classroom.Service
	repo     classroom.Repository
}

func testConfig() *core.Config {
	return &core.Config{
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Academia",
		SecretKey:        "secret",
		DefaultFromEmail: mail.Address{Name: "Academia", Address: "noreply@localhost"},
		Server: core.ServerConfig{
			Host:               "localhost",
			JWTExpirationDelta: 10 * time.Minute,
		},
	}
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setupServer() failed: %v", err)
	}

	env := &testEnv{
		conf:    testConfig(),
		usrRepo: inmemdb.NewUserRepository(db),
		repo:    inmemdb.NewClassroomRepository(db),
	}
	mailSvc := emailsvc.NewConsoleServiceMock(env.conf)
	logger := core.NewStdLogger(log.New(io.Discard, "", 0))
	env.usrSvc = user.NewService(env.usrRepo, mailSvc)
	env.classSvc = classroom.NewService(env.repo, env.usrRepo, mailSvc, logger)

	env.server = NewServer(&Options{
		Address:        ":0",
		DisableReqLogs: true,
		Conf:           env.conf,
		Logger:         logger,
		UserSvc:        env.usrSvc,
		ClassroomSvc:   env.classSvc,
		SignalShutdown: func() {},
	})
	return env
}

func createUser(t *testing.T, repo user.Repository, uname, pwd, role string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		Username:  uname,
		Email:     uname + "@test.cd",
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
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
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %s; wantData %s", rec.Body.Bytes(), tt.wantData)
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decodeBody() failed: %v; body %s", err, rec.Body.String())
	}
}
