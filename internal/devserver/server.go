// Package devserver is a stand-in for the real backend: it speaks the same
// HTTP and websocket contract so the client can be exercised end to end
// without a model behind it.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// longReplyThreshold is where the echo bot switches to a chunked reply, so
// clients see the string-array frame shape too.
const longReplyThreshold = 6

type server struct {
	mu       sync.Mutex
	sessions map[string]struct{}
}

// NewHandler builds the stub backend router.
func NewHandler() http.Handler {
	s := &server{sessions: map[string]struct{}{}}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "API is running"})
	})
	r.Post("/api/v1/chat/start-session", s.handleStartSession)
	r.Get("/api/v1/chat/ws/{sessionID}", s.handleWS)
	r.Post("/api/v1/analyze-image", s.handleAnalyzeImage)
	return r
}

func (s *server) handleStartSession(w http.ResponseWriter, _ *http.Request) {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = struct{}{}
	s.mu.Unlock()
	log.Info().Str("session_id", id).Msg("[devserver] session started")
	writeJSON(w, map[string]string{"session_id": id})
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	_, known := s.sessions[id]
	s.mu.Unlock()
	if !known {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteJSON(botReply(string(data))); err != nil {
			log.Debug().Err(err).Str("session_id", id).Msg("[devserver] ws write failed")
			return
		}
	}
}

func (s *server) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	inputText := r.FormValue("input_text")
	if inputText == "" {
		http.Error(w, "input_text is required", http.StatusBadRequest)
		return
	}

	imageName := "no image"
	if file, header, err := r.FormFile("image"); err == nil {
		imageName = header.Filename
		file.Close()
	}

	writeJSON(w, map[string]string{
		"response": fmt.Sprintf("Analysis of %s: %s", imageName, inputText),
	})
}

// botReply echoes the user's message back in the {"bot": ...} frame shape.
// Long inputs come back as ordered chunks.
func botReply(text string) map[string]any {
	words := strings.Fields(text)
	if len(words) <= longReplyThreshold {
		return map[string]any{"bot": "You said: " + text}
	}
	half := len(words) / 2
	return map[string]any{"bot": []string{
		"You said: " + strings.Join(words[:half], " "),
		strings.Join(words[half:], " "),
	}}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
