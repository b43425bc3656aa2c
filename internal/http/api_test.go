package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"user-api/internal/domain"
	"user-api/internal/realtime"
	"user-api/internal/repository/sqlite"
	"user-api/internal/service"
	"user-api/internal/storage"
)

type notification struct {
	name    string
	payload any
}

type recorder struct {
	mu            sync.Mutex
	notifications []notification
	events        []domain.Event
}

func (r *recorder) Broadcast(_ context.Context, name string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification{name: name, payload: payload})
	return nil
}

func (r *recorder) Publish(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
	r.events = nil
}

type stubArchive struct {
	objects []storage.ObjectInfo
	asked   string
}

func (s *stubArchive) List(_ context.Context, eventName string) ([]storage.ObjectInfo, error) {
	s.asked = eventName
	return s.objects, nil
}

type testServer struct {
	router *gin.Engine
	rec    *recorder
}

func newTestServer(t *testing.T, archive EventArchive) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	rec := &recorder{}
	router := gin.New()
	NewHandler(service.NewUserService(repo, rec, rec), realtime.NewHub(log), archive, "", log).RegisterRoutes(router)
	return testServer{router: router, rec: rec}
}

func (s testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) UserResponse {
	t.Helper()
	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateUser(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, nil)
	clientID := uuid.NewString()

	w := srv.do(t, http.MethodPost, "/api/user", map[string]string{
		"id":       clientID,
		"username": "testuser",
		"email":    "test@example.com",
	})

	req.Equal(http.StatusCreated, w.Code)
	created := decodeUser(t, w)
	req.Equal("testuser", created.Username)
	req.Equal("test@example.com", created.Email)
	req.NotEmpty(created.ID)
	req.NotEqual(clientID, created.ID)
	req.Equal("/api/user?id="+created.ID, w.Header().Get("Location"))

	req.Len(srv.rec.notifications, 1)
	req.Equal(domain.NotifyUserAdded, srv.rec.notifications[0].name)
	req.Len(srv.rec.events, 1)
	req.Equal(domain.UserCreated{ID: uuid.MustParse(created.ID), Username: "testuser", Email: "test@example.com"}, srv.rec.events[0])
}

func TestCreateUser_MalformedPayload(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodPost, "/api/user", "{not json")

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, srv.rec.events)
}

func TestCreateUser_MissingFields(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{"should reject an empty object", `{}`},
		{"should reject a missing email", `{"username":"testuser"}`},
		{"should reject an empty username", `{"username":"","email":"test@example.com"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			srv := newTestServer(t, nil)

			w := srv.do(t, http.MethodPost, "/api/user", tc.body)

			req.Equal(http.StatusBadRequest, w.Code)
			req.Empty(srv.rec.notifications)
			req.Empty(srv.rec.events)

			w = srv.do(t, http.MethodGet, "/api/user", nil)
			req.JSONEq(`[]`, w.Body.String())
		})
	}
}

func TestListUsers(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/api/user", nil)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`[]`, w.Body.String())

	srv.do(t, http.MethodPost, "/api/user", map[string]string{"username": "a", "email": "a@example.com"})
	srv.do(t, http.MethodPost, "/api/user", map[string]string{"username": "b", "email": "b@example.com"})
	srv.rec.reset()

	w = srv.do(t, http.MethodGet, "/api/user", nil)
	req.Equal(http.StatusOK, w.Code)
	var users []UserResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &users))
	req.Len(users, 2)
	req.Empty(srv.rec.notifications)
	req.Empty(srv.rec.events)
}

func TestGetUser(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, nil)
	created := decodeUser(t, srv.do(t, http.MethodPost, "/api/user", map[string]string{"username": "alice", "email": "alice@example.com"}))
	srv.rec.reset()

	w := srv.do(t, http.MethodGet, "/api/user/"+created.ID, nil)

	req.Equal(http.StatusOK, w.Code)
	req.Equal(created, decodeUser(t, w))
	req.Len(srv.rec.notifications, 1)
	req.Equal(domain.NotifyUserFetched, srv.rec.notifications[0].name)
	req.Equal([]domain.Event{domain.UserFetched{ID: uuid.MustParse(created.ID), Username: "alice", Email: "alice@example.com"}}, srv.rec.events)
}

func TestMissingUser(t *testing.T) {
	srv := newTestServer(t, nil)
	path := "/api/user/" + uuid.NewString()

	for _, tc := range []struct {
		method string
		body   any
	}{
		{http.MethodGet, nil},
		{http.MethodDelete, nil},
		{http.MethodPatch, map[string]string{"username": "x"}},
		{http.MethodPatch, ""},
	} {
		t.Run(tc.method, func(t *testing.T) {
			srv.rec.reset()
			w := srv.do(t, tc.method, path, tc.body)

			require.Equal(t, http.StatusNotFound, w.Code)
			require.Empty(t, srv.rec.notifications)
			require.Empty(t, srv.rec.events)
		})
	}
}

func TestInvalidUserID(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/api/user/not-a-uuid", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatchUser(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, nil)
	created := decodeUser(t, srv.do(t, http.MethodPost, "/api/user", map[string]string{"username": "olduser", "email": "old@example.com"}))
	srv.rec.reset()

	w := srv.do(t, http.MethodPatch, "/api/user/"+created.ID, `{"username":"newuser","email":null}`)

	req.Equal(http.StatusOK, w.Code)
	patched := decodeUser(t, w)
	req.Equal(UserResponse{ID: created.ID, Username: "newuser", Email: "old@example.com"}, patched)
	req.Len(srv.rec.notifications, 1)
	req.Equal(domain.NotifyUserUpdated, srv.rec.notifications[0].name)
	req.Equal([]domain.Event{domain.UserUpdated{ID: uuid.MustParse(created.ID), Username: "newuser", Email: "old@example.com"}}, srv.rec.events)

	w = srv.do(t, http.MethodGet, "/api/user/"+created.ID, nil)
	req.Equal(patched, decodeUser(t, w))
}

func TestPatchUser_EmptyBody(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, nil)
	created := decodeUser(t, srv.do(t, http.MethodPost, "/api/user", map[string]string{"username": "carol", "email": "carol@example.com"}))
	srv.rec.reset()

	w := srv.do(t, http.MethodPatch, "/api/user/"+created.ID, "")

	req.Equal(http.StatusOK, w.Code)
	req.Equal(created, decodeUser(t, w))
	req.Len(srv.rec.events, 1)
}

func TestDeleteUser(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, nil)
	created := decodeUser(t, srv.do(t, http.MethodPost, "/api/user", map[string]string{"username": "bob", "email": "bob@example.com"}))
	srv.rec.reset()

	w := srv.do(t, http.MethodDelete, "/api/user/"+created.ID, nil)

	req.Equal(http.StatusOK, w.Code)
	req.Equal(created, decodeUser(t, w))
	req.Len(srv.rec.notifications, 1)
	req.Equal(domain.NotifyUserDeleted, srv.rec.notifications[0].name)
	req.Equal([]domain.Event{domain.UserDeleted{ID: uuid.MustParse(created.ID), Username: "bob", Email: "bob@example.com"}}, srv.rec.events)

	w = srv.do(t, http.MethodGet, "/api/user/"+created.ID, nil)
	req.Equal(http.StatusNotFound, w.Code)
}

func TestListArchivedEvents(t *testing.T) {
	t.Run("should fail when no archive is configured", func(t *testing.T) {
		srv := newTestServer(t, nil)

		w := srv.do(t, http.MethodGet, "/api/events", nil)

		require.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("should list archived objects for one event", func(t *testing.T) {
		req := require.New(t)
		archive := &stubArchive{objects: []storage.ObjectInfo{{Key: "user-events/user.created/m1.json", Size: 42}}}
		srv := newTestServer(t, archive)

		w := srv.do(t, http.MethodGet, "/api/events?event=user.created", nil)

		req.Equal(http.StatusOK, w.Code)
		req.Equal("user.created", archive.asked)
		req.JSONEq(`[{"key":"user-events/user.created/m1.json","size":42}]`, w.Body.String())
	})
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodOptions, "/api/user", nil)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
