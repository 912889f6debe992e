package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tgarrity/chathub/internal/config"
	"github.com/tgarrity/chathub/internal/database"
	"github.com/tgarrity/chathub/internal/hub"
	"github.com/tgarrity/chathub/internal/stats"
	"github.com/tgarrity/chathub/internal/testutil"
	"github.com/tgarrity/chathub/internal/types"
)

const testMainRoomId = "main-room"

// newTestApp creates a ChatHubApp backed by mocks for testing purposes
func newTestApp(t *testing.T, db *database.MockChatRepository, su *stats.MockStatsUpdater) *ChatHubApp {
	t.Helper()
	su.On("RegisterMetric", mock.Anything).Return(nil).Times(4)

	logger := testutil.TestLogger(t)
	h, err := hub.NewHub(logger, db, su, testMainRoomId)
	if err != nil {
		t.Fatalf("failed to create test Hub: %v", err)
	}

	cfg := &config.Config{
		ServerAddr:   "localhost:8000",
		DatabaseDSN:  "dsn",
		SigningKey:   []byte("test-signing-key"),
		MainRoomName: "main",
	}

	return NewChatHubApp(http.NewServeMux(), logger, h, db, su, cfg)
}

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("failed to encode request body: %v", err)
	}
	return buf
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockChatRepository{}
			defer db.AssertExpectations(t)
			db.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, db, &stats.MockStatsUpdater{})
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			app.healthCheck(rr, req)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func TestSignupHandler(t *testing.T) {
	t.Run("creates an account with a generated username", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "MessagesBroadcast").Once()

		app := newTestApp(t, db, su)
		app.generateShortId = func() (string, error) { return "EoGKUXPHgz", nil }

		created := database.User{
			Id:        "user-1",
			Login:     "alice@example.com",
			Username:  "user-EoGKUXPHgz",
			Status:    "Offline",
			CreatedAt: time.Now().UTC(),
		}

		db.On("GetAccountByLogin", "alice@example.com").Return(database.User{}, sql.ErrNoRows).Once()
		db.On("UsernameInUse", "user-EoGKUXPHgz").Return(false).Once()
		db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
			return p.Login == "alice@example.com" &&
				p.Username == "user-EoGKUXPHgz" &&
				p.Id != "" &&
				p.PasswordHash != "" && p.PasswordHash != "s3cret"
		})).Return(created, nil).Once()
		db.On("AddUserToRoom", "user-1", testMainRoomId).Return(nil).Once()
		db.On("GetRoom", testMainRoomId).Return(database.Room{
			Id:      testMainRoomId,
			Members: []string{"user-1"},
		}, nil).Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
			jsonBody(t, SignupRequest{Login: "alice@example.com", Password: "s3cret"}))

		app.signup(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code, "expected status code to be 201")

		cookie := findCookie(rr, tokenCookieKey)
		if assert.NotNil(t, cookie, "expected a session cookie to be set") {
			assert.NotEmpty(t, cookie.Value, "expected the cookie to carry a token")
		}

		var u types.User
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u), "expected a user in the response")
		assert.Equal(t, "user-1", u.Id)
		assert.Equal(t, "user-EoGKUXPHgz", u.Username, "expected the generated username")
	})

	t.Run("rejects a missing login or password", func(t *testing.T) {
		app := newTestApp(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

		for _, body := range []SignupRequest{
			{Login: "", Password: "s3cret"},
			{Login: "alice@example.com", Password: ""},
		} {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", jsonBody(t, body))
			app.signup(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
		}
	})

	t.Run("rejects a duplicate login", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db, &stats.MockStatsUpdater{})

		db.On("GetAccountByLogin", "alice@example.com").Return(database.User{Id: "user-1"}, nil).Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
			jsonBody(t, SignupRequest{Login: "alice@example.com", Password: "s3cret"}))

		app.signup(rr, req)
		assert.Equal(t, http.StatusConflict, rr.Code, "expected status code to be 409")
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		app := newTestApp(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader("{"))
		app.signup(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})
}

func TestLoginHandler(t *testing.T) {
	pwdHash, err := hashPassword("s3cret")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	stored := database.User{
		Id:           "user-1",
		Login:        "alice@example.com",
		Username:     "alice",
		PasswordHash: pwdHash,
		Status:       "Offline",
		CreatedAt:    time.Now().UTC(),
	}

	tcases := []struct {
		name         string
		body         any
		mockUser     database.User
		mockErr      error
		expectedCode int
		expectCookie bool
	}{
		{
			name:         "successful login",
			body:         LoginRequest{Login: "alice@example.com", Password: "s3cret"},
			mockUser:     stored,
			expectedCode: http.StatusOK,
			expectCookie: true,
		},
		{
			name:         "wrong password",
			body:         LoginRequest{Login: "alice@example.com", Password: "wrong"},
			mockUser:     stored,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "unknown login",
			body:         LoginRequest{Login: "alice@example.com", Password: "s3cret"},
			mockErr:      sql.ErrNoRows,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "missing fields",
			body:         LoginRequest{},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockChatRepository{}
			defer db.AssertExpectations(t)

			app := newTestApp(t, db, &stats.MockStatsUpdater{})

			if tc.expectedCode != http.StatusBadRequest {
				db.On("GetAccountByLogin", "alice@example.com").Return(tc.mockUser, tc.mockErr).Once()
			}

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, tc.body))
			app.login(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code to be %d", tc.expectedCode)

			cookie := findCookie(rr, tokenCookieKey)
			if tc.expectCookie {
				assert.NotNil(t, cookie, "expected a session cookie to be set")

				var u types.User
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u), "expected a user in the response")
				assert.Equal(t, stored.Id, u.Id)
				assert.Empty(t, u.Password, "expected no password material in the response")
			} else {
				assert.Nil(t, cookie, "expected no session cookie on failure")
			}
		})
	}
}

func TestLogoutHandler(t *testing.T) {
	app := newTestApp(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	app.logout(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code, "expected status code to be 204")

	cookie := findCookie(rr, tokenCookieKey)
	if assert.NotNil(t, cookie, "expected the session cookie to be overwritten") {
		assert.Empty(t, cookie.Value, "expected an empty token")
		assert.True(t, cookie.Expires.Before(time.Now()), "expected the cookie to be expired")
	}
}

func TestSessionHandler(t *testing.T) {
	t.Run("returns the current user", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db, &stats.MockStatsUpdater{})

		db.On("GetAccountById", "user-1").Return(database.User{
			Id:       "user-1",
			Login:    "alice@example.com",
			Username: "alice",
			Status:   "Online",
		}, nil).Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req = req.WithContext(WithUserId(req.Context(), "user-1"))
		app.session(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var u types.User
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u), "expected a user in the response")
		assert.Equal(t, "alice", u.Username)
		assert.Equal(t, types.PresenceOnline, u.Status)
	})

	t.Run("404s for an unknown account", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db, &stats.MockStatsUpdater{})

		db.On("GetAccountById", "user-1").Return(database.User{}, sql.ErrNoRows).Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req = req.WithContext(WithUserId(req.Context(), "user-1"))
		app.session(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code to be 404")
	})

	t.Run("401s without a user id in context", func(t *testing.T) {
		app := newTestApp(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		app.session(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
	})
}

func Test_serveWs(t *testing.T) {
	mockUser := database.User{
		Id:           "user-1",
		Login:        "testuser@example.com",
		Username:     "testuser",
		PasswordHash: "examplehash",
		Status:       "Offline",
		CreatedAt:    time.Now().UTC(),
	}

	t.Run("successful websocket upgrade and client registration", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		registered := make(chan struct{})
		su.On("Incr", "NumActiveConnections").Return(nil).Once()
		su.On("Incr", "NumOnlineUsers").Return(nil).Once().
			Run(func(args mock.Arguments) { close(registered) })
		su.On("Decr", "NumActiveConnections").Return(nil).Maybe()
		su.On("Decr", "NumOnlineUsers").Return(nil).Maybe()

		app := newTestApp(t, db, su)

		db.On("GetAccountById", mockUser.Id).Return(mockUser, nil).Once()
		db.On("ListRoomsForUser", mockUser.Id).Return([]database.Room{}, nil).Once()
		// startup units and teardown run in their own goroutines
		db.On("GetRoomMembers", testMainRoomId).Return([]database.RoomMember{}, nil).Maybe()
		db.On("ListRoomMessages", testMainRoomId).Return([]database.Message{}, nil).Maybe()
		db.On("SetUserPresence", mockUser.Id, mock.Anything).Return(nil).Maybe()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithUserId(r.Context(), mockUser.Id)
			app.serveWs(w, r.WithContext(ctx))
		}))
		defer srv.Close()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{})
		defer func() {
			if conn != nil {
				conn.Close()
			}
		}()
		assert.NoError(t, err)
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

		select {
		case <-registered:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for client registration")
		}
	})

	errorTestCases := []struct {
		name         string
		userId       string
		mockErr      error
		expectedCode int
	}{
		{
			name:         "unauthorized user",
			userId:       "",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "user not found",
			userId:       "user-1",
			mockErr:      sql.ErrNoRows,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "db error",
			userId:       "user-1",
			mockErr:      errors.New("db error"),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range errorTestCases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockChatRepository{}
			defer db.AssertExpectations(t)

			app := newTestApp(t, db, &stats.MockStatsUpdater{})

			if tc.userId != "" {
				db.On("GetAccountById", tc.userId).Return(database.User{}, tc.mockErr).Once()
			}

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tc.userId != "" {
				req = req.WithContext(WithUserId(req.Context(), tc.userId))
			}
			app.serveWs(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code to be %d", tc.expectedCode)
		})
	}
}

func TestChangeUsernameHandler(t *testing.T) {
	t.Run("renames through the hub", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "MessagesBroadcast").Once()

		app := newTestApp(t, db, su)

		db.On("UsernameInUse", "newname").Return(false).Once()
		db.On("GetAccountById", "user-1").Return(database.User{Id: "user-1", Username: "oldname"}, nil).Once()
		db.On("RenameUser", "oldname", "newname").Return(nil).Once()
		db.On("GetRoom", testMainRoomId).Return(database.Room{
			Id:      testMainRoomId,
			Members: []string{"user-1"},
		}, nil).Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/username",
			jsonBody(t, ChangeUsernameRequest{NewUsername: "newname"}))
		req = req.WithContext(WithUserId(req.Context(), "user-1"))
		app.changeUsername(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var resp ChangeUsernameRequest
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "newname", resp.NewUsername, "expected the new username to be echoed")
	})

	t.Run("rejects a username already in use", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db, &stats.MockStatsUpdater{})

		db.On("UsernameInUse", "taken").Return(true).Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/username",
			jsonBody(t, ChangeUsernameRequest{NewUsername: "taken"}))
		req = req.WithContext(WithUserId(req.Context(), "user-1"))
		app.changeUsername(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")

		var apiErr ApiError
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&apiErr))
		assert.Equal(t, "username already in use", apiErr.Message, "expected the structured rejection")
	})

	t.Run("rejects an empty username", func(t *testing.T) {
		app := newTestApp(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/username",
			jsonBody(t, ChangeUsernameRequest{NewUsername: ""}))
		req = req.WithContext(WithUserId(req.Context(), "user-1"))
		app.changeUsername(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})
}
