package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"noticeboard/internal/broadcast"
	"noticeboard/internal/db"
	"noticeboard/internal/notice"
	"noticeboard/internal/store"
	"noticeboard/internal/upload"
	"noticeboard/pkg/types"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	service  *Service
	srv      *httptest.Server
	config   *types.Config
	hub      *broadcast.Hub
	database *sql.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()

	cfg := &types.Config{
		Environment:      "test",
		ServerPort:       0,
		DatabasePath:     filepath.Join(t.TempDir(), "test.db"),
		UploadDir:        filepath.Join(t.TempDir(), "uploads"),
		ReadTimeoutSec:   5,
		WriteTimeoutSec:  5,
		CookieName:       "session_id",
		SessionMaxAgeSec: 3600,
		CookieHashKey:    base64.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)),
		CookieBlockKey:   base64.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)),
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	database, err := db.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.Bootstrap(ctx, database, "admin", "password"))

	uploader, err := upload.NewUploader(cfg.UploadDir)
	require.NoError(t, err)

	hub := broadcast.NewHub(logger)
	noticeService := notice.New(logger, store.NewNoticeRepository(database), uploader, hub)

	s, err := New(cfg, logger, store.NewUserRepository(database), noticeService, hub)
	require.NoError(t, err)

	srv := httptest.NewServer(s.server.Handler)
	t.Cleanup(srv.Close)

	return &testEnv{service: s, srv: srv, config: cfg, hub: hub, database: database}
}

// noRedirectClient surfaces 3xx responses instead of following them.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) postLogin(t *testing.T, username, password string) *http.Response {
	t.Helper()

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	resp, err := noRedirectClient().Post(
		e.srv.URL+"/login",
		"application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()

	resp := e.postLogin(t, "admin", "password")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == e.config.CookieName {
			return c
		}
	}

	t.Fatal("login response did not set a session cookie")
	return nil
}

func multipartBody(t *testing.T, title, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", title))

	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)

	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func (e *testEnv) postNotice(t *testing.T, session *http.Cookie, title, filename, content string) *http.Response {
	t.Helper()

	body, contentType := multipartBody(t, title, filename, content)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/notices", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if session != nil {
		req.AddCookie(session)
	}

	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func (e *testEnv) listNotices(t *testing.T) []*types.Notice {
	t.Helper()

	resp, err := http.Get(e.srv.URL + "/notices")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var notices []*types.Notice
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&notices))

	return notices
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postLogin(t, "admin", "password")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))

	session := env.login(t)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/admin", nil)
	require.NoError(t, err)
	req.AddCookie(session)

	adminResp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	defer adminResp.Body.Close()

	require.Equal(t, http.StatusOK, adminResp.StatusCode)
	body, err := io.ReadAll(adminResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Manage Notices")
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postLogin(t, "admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Invalid username or password")

	for _, c := range resp.Cookies() {
		assert.NotEqual(t, env.config.CookieName, c.Name, "failed login must not set a session")
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/admin", nil)
	require.NoError(t, err)

	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestUnauthenticatedMutationsDenied(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postNotice(t, nil, "Sneaky", "menu.txt", "soup")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	assert.Empty(t, env.listNotices(t), "unauthenticated post must not create a notice")

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/notices/1/delete", nil)
	require.NoError(t, err)

	delResp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, delResp.StatusCode)
	assert.Equal(t, "/login", delResp.Header.Get("Location"))
}

func TestAddNoticeFlow(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t)

	resp := env.postNotice(t, session, "Lunch Menu", "menu.txt", "soup of the day")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))

	notices := env.listNotices(t)
	require.Len(t, notices, 1)
	assert.Equal(t, "Lunch Menu", notices[0].Title)
	assert.Equal(t, "txt", notices[0].FileType)
	require.NotNil(t, notices[0].FilePath)
	assert.FileExists(t, *notices[0].FilePath)
}

func TestAddNoticeValidation(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t)

	t.Run("missing title", func(t *testing.T) {
		resp := env.postNotice(t, session, "", "menu.txt", "soup")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("disallowed extension", func(t *testing.T) {
		resp := env.postNotice(t, session, "Sneaky", "malware.exe", "bin")
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})

	assert.Empty(t, env.listNotices(t))
}

func TestDeleteNoticeFlow(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t)

	resp := env.postNotice(t, session, "Ephemeral", "note.txt", "bye")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	notices := env.listNotices(t)
	require.Len(t, notices, 1)
	noticeID := notices[0].ID
	filePath := *notices[0].FilePath

	deleteURL := env.srv.URL + "/notices/" + strconv.FormatInt(noticeID, 10) + "/delete"

	req, err := http.NewRequest(http.MethodPost, deleteURL, nil)
	require.NoError(t, err)
	req.AddCookie(session)

	delResp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, delResp.StatusCode)
	assert.Equal(t, "/admin", delResp.Header.Get("Location"))

	assert.Empty(t, env.listNotices(t))
	assert.NoFileExists(t, filePath)

	// Deleting the same id again is not-found.
	req2, err := http.NewRequest(http.MethodPost, deleteURL, nil)
	require.NoError(t, err)
	req2.AddCookie(session)

	delResp2, err := noRedirectClient().Do(req2)
	require.NoError(t, err)
	defer delResp2.Body.Close()

	assert.Equal(t, http.StatusNotFound, delResp2.StatusCode)
}

func TestViewerNotifiedOnMutation(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	resp := env.postNotice(t, session, "Breaking", "news.txt", "read all about it")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, broadcast.EventNoticesUpdated, string(msg))
}

func TestListNoticesStorageFailure(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.database.Exec("DROP TABLE notices")
	require.NoError(t, err)

	resp, err := http.Get(env.srv.URL + "/notices")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "database error")
}

func TestPublicBoardPage(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Notice Board")
}

func TestStaleSessionCookieReachesLoginForm(t *testing.T) {
	env := newTestEnv(t)

	stale := &http.Cookie{Name: env.config.CookieName, Value: "garbage-not-decodable"}

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/login", nil)
	require.NoError(t, err)
	req.AddCookie(stale)

	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode, "stale cookie must not redirect away from the login form")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Admin Login")

	assertSessionExpired(t, env, resp)

	// The admin side of the loop must also expire the bad cookie.
	adminReq, err := http.NewRequest(http.MethodGet, env.srv.URL+"/admin", nil)
	require.NoError(t, err)
	adminReq.AddCookie(stale)

	adminResp, err := noRedirectClient().Do(adminReq)
	require.NoError(t, err)
	defer adminResp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, adminResp.StatusCode)
	assert.Equal(t, "/login", adminResp.Header.Get("Location"))
	assertSessionExpired(t, env, adminResp)
}

func assertSessionExpired(t *testing.T, env *testEnv, resp *http.Response) {
	t.Helper()

	for _, c := range resp.Cookies() {
		if c.Name == env.config.CookieName {
			assert.Less(t, c.MaxAge, 0, "undecodable session cookie must be expired")
			return
		}
	}

	t.Error("response did not expire the session cookie")
}

func TestNewRejectsBadCookieKeys(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tests := []struct {
		name     string
		hashKey  string
		blockKey string
	}{
		{"invalid base64", "not-base64!!", "also-not-base64!!"},
		{"empty keys", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &types.Config{
				CookieName:     "session_id",
				CookieHashKey:  tt.hashKey,
				CookieBlockKey: tt.blockKey,
			}

			_, err := New(cfg, logger, nil, nil, nil)
			assert.Error(t, err)
		})
	}
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/logout", nil)
	require.NoError(t, err)
	req.AddCookie(session)

	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == env.config.CookieName {
			cleared = true
			assert.Less(t, c.MaxAge, 0, "logout must expire the session cookie")
		}
	}
	assert.True(t, cleared, "logout must rewrite the session cookie")
}
