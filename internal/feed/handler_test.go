package feed

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-connect/portal/internal/middleware"
	"github.com/civic-connect/portal/internal/models"
	"github.com/civic-connect/portal/internal/realtime"
)

type published struct {
	room, event string
	payload     interface{}
}

type recorder struct{ events []published }

func (r *recorder) Publish(room, event string, payload interface{}) {
	r.events = append(r.events, published{room, event, payload})
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(h *Handler, as *models.User) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, as.ID)
		c.Next()
	})
	r.GET("/feed", h.Load)
	r.GET("/feed/messages", h.Poll)
	r.POST("/feed/messages", h.Post)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func data(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&env))
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestPostAndPoll(t *testing.T) {
	f := newFixture(t, Options{})
	hub := &recorder{}
	r := newRouter(NewHandler(f.svc, hub, nil), f.author)

	w := serve(r, http.MethodGet, "/feed", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap Snapshot
	data(t, w, &snap)
	assert.Empty(t, snap.Messages)
	assert.Nil(t, snap.Poll)
	cursor := snap.Cursor

	w = serve(r, http.MethodPost, "/feed/messages", `{"text":"  water cut tomorrow 9-12  "}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var posted Entry
	data(t, w, &posted)
	assert.Equal(t, "water cut tomorrow 9-12", posted.Text)
	assert.Equal(t, "asha", posted.Author)
	require.Len(t, hub.events, 1)
	assert.Equal(t, realtime.CommunityRoom, hub.events[0].room)
	assert.Equal(t, realtime.EventChatMessage, hub.events[0].event)
	assert.Equal(t, posted, hub.events[0].payload)

	var page struct {
		Messages []Entry `json:"messages"`
	}
	w = serve(r, http.MethodGet, "/feed/messages?cursor="+strconv.FormatInt(cursor, 10), "")
	require.Equal(t, http.StatusOK, w.Code)
	data(t, w, &page)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, posted.ID, page.Messages[0].ID)

	w = serve(r, http.MethodGet, "/feed/messages?last_id="+strconv.FormatInt(posted.ID, 10), "")
	require.Equal(t, http.StatusOK, w.Code)
	data(t, w, &page)
	assert.Empty(t, page.Messages)
}

func TestPostRejectsBlankText(t *testing.T) {
	f := newFixture(t, Options{})
	hub := &recorder{}
	r := newRouter(NewHandler(f.svc, hub, nil), f.author)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/feed/messages", `{"text":"   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/feed/messages", `not json`).Code)
	assert.Empty(t, hub.events)
}

func TestPollRejectsBadCursor(t *testing.T) {
	f := newFixture(t, Options{})
	r := newRouter(NewHandler(f.svc, nil, nil), f.author)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/feed/messages?cursor=-3", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/feed/messages?cursor=x", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/feed/messages", "").Code)
}

func TestLoadHonoursLimit(t *testing.T) {
	f := newFixture(t, Options{})
	f.appendN(t, 4)
	r := newRouter(NewHandler(f.svc, nil, nil), f.author)

	var snap Snapshot
	w := serve(r, http.MethodGet, "/feed?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	data(t, w, &snap)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, snap.Cursor, snap.Messages[1].ID)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/feed?limit=abc", "").Code)
}
