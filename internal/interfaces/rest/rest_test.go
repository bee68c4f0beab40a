package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/event"
	infra "github.com/pot-code/coursegate/internal/infrastructure"
	"github.com/pot-code/coursegate/internal/infrastructure/auth"
	"github.com/pot-code/coursegate/internal/infrastructure/driver"
	"github.com/pot-code/coursegate/internal/infrastructure/uuid"
	"github.com/pot-code/coursegate/internal/playback"
	"github.com/pot-code/coursegate/internal/progress"
	"github.com/pot-code/coursegate/internal/quiz"
	"github.com/pot-code/coursegate/internal/unlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testCatalog = `
courses:
  - id: go101
    name: Go 101
    lessons:
      - {id: intro, position: 1, name: Intro, media_url: /v/intro.mp4, duration: 100}
      - {id: types, position: 2, name: Types, media_url: /v/types.mp4, duration: 100}
    quiz:
      questions:
        - {id: Q1, position: 1, prompt: "a?", options: [A, B], correct_answer: A}
        - {id: Q2, position: 2, prompt: "b?", options: [A, B], correct_answer: A}
`

type testServer struct {
	app *echo.Echo
	kv  *driver.MemoryKV
	hub *event.Hub
}

const testSecret = "test-secret"

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	catalog, err := course.LoadCatalog(strings.NewReader(testCatalog))
	require.NoError(t, err)

	option := new(infra.AppConfig)
	option.Env = infra.EnvProduction
	option.RequestTimeout = 5 * time.Second
	option.Security.JWTMethod = "HS256"
	option.Security.JWTSecret = testSecret
	option.Security.TokenName = "token"

	ids := uuid.NewNanoIDGenerator(12)
	kv := driver.NewMemoryKV()
	hub := event.NewHub()
	gateway := progress.NewMemoryGateway(catalog, ids)
	engine := unlock.NewEngine(gateway, hub, 10)

	app := NewApp(
		gateway,
		kv,
		option,
		unlock.NewUseCase(catalog, gateway),
		playback.NewUseCase(catalog, gateway, engine, playback.NewSessionStore(kv, time.Hour),
			playback.NewDetector(0.9), hub, ids, time.Second),
		quiz.NewUseCase(catalog, gateway, hub),
		hub,
		zap.NewNop(),
	)
	return &testServer{
		app: app,
		kv:  kv,
		hub: hub,
	}
}

func (ts *testServer) token(t *testing.T, uid string) string {
	t.Helper()
	claims := &auth.IdentityClaims{UID: uid}
	claims.ExpiresAt = time.Now().Add(time.Hour).Unix()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", "", "").Code)
}

func TestRequiresIdentity(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/course/go101/progress", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/course/go101/progress", "garbage", "").Code)
}

func TestRevokedToken(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "u1")
	require.NoError(t, ts.kv.SetEX(context.Background(), RevokedTokenPrefix+token, "1", time.Hour))

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/course/go101/progress", token, "").Code)
}

func TestCourseFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "u1")

	rec := ts.do(t, http.MethodGet, "/api/v1/course/go101/progress", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		ActiveLessonID string `json:"active_lesson_id"`
		QuizUnlocked   bool   `json:"quiz_unlocked"`
		Lessons        []struct {
			ID       string `json:"id"`
			State    string `json:"state"`
			Playable bool   `json:"playable"`
		} `json:"lessons"`
	}
	decode(t, rec, &view)
	assert.Equal(t, "intro", view.ActiveLessonID)
	assert.Equal(t, "UNLOCKED", view.Lessons[0].State)
	assert.Equal(t, "LOCKED", view.Lessons[1].State)

	rec = ts.do(t, http.MethodPost, "/api/v1/course/go101/lesson/types/start", token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/course/go101/quiz", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"locked":true`)

	for _, lesson := range []string{"intro", "types"} {
		rec = ts.do(t, http.MethodPost, "/api/v1/course/go101/lesson/"+lesson+"/start", token, "")
		require.Equal(t, http.StatusCreated, rec.Code)
		var session struct {
			ID string `json:"id"`
		}
		decode(t, rec, &session)

		rec = ts.do(t, http.MethodPost, "/api/v1/playback/"+session.ID+"/progress", token, `{"position": 95, "duration": 100}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"state":"COMPLETED"`)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/course/go101/quiz", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"locked":false`)
	assert.NotContains(t, rec.Body.String(), "correct")

	rec = ts.do(t, http.MethodPost, "/api/v1/course/go101/quiz", token, `{"answers": {"Q1": "A"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/course/go101/quiz", token, `{"answers": {"Q1": "A", "Q2": "B"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score":1`)

	rec = ts.do(t, http.MethodPost, "/api/v1/course/go101/quiz", token, `{"answers": {"Q1": "A", "Q2": "A"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"already_completed":true`)
	assert.Contains(t, rec.Body.String(), `"score":1`)
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "u1")

	rec := ts.do(t, http.MethodPost, "/api/v1/playback/whatever/progress", token, `{"position": -1, "duration": 100}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_params")

	rec = ts.do(t, http.MethodPost, "/api/v1/playback/whatever/ended", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/playback/"+strings.Repeat("s", 65)+"/ended", token, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid session")

	rec = ts.do(t, http.MethodGet, "/api/v1/course/nope/progress", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Course not found")
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.app)
	defer srv.Close()

	header := http.Header{}
	header.Set(echo.HeaderAuthorization, "Bearer "+ts.token(t, "u1"))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	// the subscription is registered once the handler runs, publish until it is
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ts.hub.Publish(context.Background(), event.QuizUnlocked("u1", "go101"))
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e event.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, event.KindQuizUnlocked, e.Kind)
	assert.Equal(t, "go101", e.CourseID)
}
