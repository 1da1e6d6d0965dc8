package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"assistant/internal/booking"
	"assistant/internal/extract"
	"assistant/internal/service"
)

type mockAssistant struct {
	mock.Mock
}

func (m *mockAssistant) SubmitMessage(ctx context.Context, sessionID, text string) (string, error) {
	args := m.Called(ctx, sessionID, text)
	return args.String(0), args.Error(1)
}

func (m *mockAssistant) SubmitDocument(ctx context.Context, sessionID, filename string, data []byte) (service.UploadResult, error) {
	args := m.Called(ctx, sessionID, filename, data)
	return args.Get(0).(service.UploadResult), args.Error(1)
}

func (m *mockAssistant) ListBookings(ctx context.Context) ([]booking.CompletedBooking, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]booking.CompletedBooking)
	return list, args.Error(1)
}

func (m *mockAssistant) EndSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func newTestServer(a Assistant, conf Conf) *Server {
	gin.SetMode(gin.TestMode)
	conf.L = zap.NewNop()
	return New(context.Background(), conf, a)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestChatHandler(t *testing.T) {
	a := new(mockAssistant)
	a.On("SubmitMessage", mock.Anything, "s1", "book a table").Return("Please tell me your full name.", nil).Once()
	srv := newTestServer(a, Conf{})

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", chatRequest{SessionID: "s1", Message: "  book a table "})
	require.Equal(t, http.StatusOK, w.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "Please tell me your full name.", resp.Reply)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	a.AssertExpectations(t)
}

func TestChatHandler_AssignsSession(t *testing.T) {
	a := new(mockAssistant)
	a.On("SubmitMessage", mock.Anything, mock.AnythingOfType("string"), "hi").Return("I do not know.", nil)
	srv := newTestServer(a, Conf{})

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", chatRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.SessionID, 36)
}

func TestChatHandler_Errors(t *testing.T) {
	a := new(mockAssistant)
	a.On("SubmitMessage", mock.Anything, "s1", "hi").Return("", errors.New("redis down"))
	srv := newTestServer(a, Conf{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", chatRequest{SessionID: "s1", Message: "hi"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "redis")
}

func multipartUpload(t *testing.T, filename, content, sessionID string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if sessionID != "" {
		require.NoError(t, mw.WriteField("session_id", sessionID))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler(t *testing.T) {
	a := new(mockAssistant)
	a.On("SubmitDocument", mock.Anything, "s1", "policy.txt", []byte("hours are nine to five")).
		Return(service.UploadResult{ChunkCount: 1}, nil).Once()
	a.On("SubmitDocument", mock.Anything, "s1", "blank.pdf", mock.Anything).
		Return(service.UploadResult{}, extract.ErrNoText).Once()
	a.On("SubmitDocument", mock.Anything, "s1", "broken.pdf", mock.Anything).
		Return(service.UploadResult{}, errors.New("embedder down")).Once()
	srv := newTestServer(a, Conf{})

	tests := []struct {
		name     string
		req      *http.Request
		code     int
		status   string
		contains string
	}{
		{"success", multipartUpload(t, "policy.txt", "hours are nine to five", "s1"), http.StatusOK, "success", "indexed"},
		{"unsupported", multipartUpload(t, "slides.pptx", "x", "s1"), http.StatusBadRequest, "error", "Only PDF and TXT"},
		{"missing file", multipartUpload(t, "", "", "s1"), http.StatusBadRequest, "error", "Missing file"},
		{"no text", multipartUpload(t, "blank.pdf", "x", "s1"), http.StatusUnprocessableEntity, "error", "no readable text"},
		{"index failure", multipartUpload(t, "broken.pdf", "x", "s1"), http.StatusInternalServerError, "error", "could not be indexed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, tt.req)
			assert.Equal(t, tt.code, w.Code)
			var resp uploadResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Contains(t, resp.Message, tt.contains)
		})
	}
	a.AssertExpectations(t)
}

func TestUploadHandler_TooLarge(t *testing.T) {
	srv := newTestServer(new(mockAssistant), Conf{MaxUploadBytes: 512})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, multipartUpload(t, "big.txt", strings.Repeat("x", 4096), "s1"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestBookingsHandler(t *testing.T) {
	a := new(mockAssistant)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	a.On("ListBookings", mock.Anything).Return([]booking.CompletedBooking{{
		ID: 2, Name: "Grace", Email: "grace@example.com", Phone: "0123456789",
		BookingType: "checkup", Date: "2024-04-01", Time: "09:00",
		Status: booking.StatusConfirmed, CreatedAt: created,
	}}, nil).Once()
	a.On("ListBookings", mock.Anything).Return(nil, nil).Once()
	srv := newTestServer(a, Conf{})

	w := doJSON(t, srv.Handler(), http.MethodGet, "/api/admin/bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0]["booking_id"])
	assert.Equal(t, "CONFIRMED", got[0]["status"])
	assert.Equal(t, "2024-03-01T09:00:00Z", got[0]["created_at"])

	w = doJSON(t, srv.Handler(), http.MethodGet, "/api/admin/bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestLivenessAndRateLimit(t *testing.T) {
	a := new(mockAssistant)
	a.On("SubmitMessage", mock.Anything, "s1", "hi").Return("I do not know.", nil)
	srv := newTestServer(a, Conf{RateLimit: rate.Every(time.Hour), RateBurst: 2})

	w := doJSON(t, srv.Handler(), http.MethodGet, "/liveness", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", chatRequest{SessionID: "s1", Message: "hi"}).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Liveness is outside the limited group.
	assert.Equal(t, http.StatusNoContent, doJSON(t, srv.Handler(), http.MethodGet, "/liveness", nil).Code)
}

func TestRecoverMiddleware(t *testing.T) {
	a := new(mockAssistant)
	a.On("ListBookings", mock.Anything).Run(func(mock.Arguments) { panic("boom") })
	srv := newTestServer(a, Conf{})

	w := doJSON(t, srv.Handler(), http.MethodGet, "/api/admin/bookings", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebSocketChat(t *testing.T) {
	a := new(mockAssistant)
	a.On("SubmitMessage", mock.Anything, "ws1", "book").Return("Please tell me your full name.", nil).Once()
	a.On("SubmitMessage", mock.Anything, "ws1", "Ada").Return("Please provide your email address.", nil).Once()
	ended := make(chan struct{})
	a.On("EndSession", mock.Anything, "ws1").Return(nil).Once().Run(func(mock.Arguments) { close(ended) })
	srv := newTestServer(a, Conf{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws?session_id=ws1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsMessage{Message: "book"}))
	var reply wsReply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "ws1", reply.SessionID)
	assert.Equal(t, "Please tell me your full name.", reply.Reply)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("Ada")))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "Please provide your email address.", reply.Reply)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("session was not ended after the websocket closed")
	}
	a.AssertExpectations(t)
}

func TestCORS(t *testing.T) {
	a := new(mockAssistant)
	a.On("SubmitMessage", mock.Anything, "s1", "hi").Return("hello", nil)

	send := func(srv *Server, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"session_id":"s1","message":"hi"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w
	}

	srv := newTestServer(a, Conf{AllowOrigins: []string{"http://localhost:5173"}})
	w := send(srv, "http://localhost:5173")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = send(srv, "http://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = send(newTestServer(a, Conf{}), "http://localhost:5173")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
