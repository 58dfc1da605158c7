package devserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/chat/start-session", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.SessionID)
	return body.SessionID
}

func dialWS(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStatusEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWSRequiresKnownSession(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws/not-a-session"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWSEchoShortReply(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	conn := dialWS(t, srv, startSession(t, srv))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Bot string `json:"bot"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "You said: hello", frame.Bot)
}

func TestWSEchoChunkedReply(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	conn := dialWS(t, srv, startSession(t, srv))
	long := "one two three four five six seven eight"
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(long)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Bot []string `json:"bot"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	require.Len(t, frame.Bot, 2)
	require.Equal(t, "You said: "+long, strings.Join(frame.Bot, " "))
}

func TestAnalyzeImage(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("input_text", "what is this?"))
	part, err := form.CreateFormFile("image", "cat.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	resp, err := http.Post(srv.URL+"/api/v1/analyze-image", form.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Response string `json:"response"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Equal(t, "Analysis of cat.png: what is this?", decoded.Response)
}

func TestAnalyzeImageRequiresInputText(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.Close())

	resp, err := http.Post(srv.URL+"/api/v1/analyze-image", form.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
