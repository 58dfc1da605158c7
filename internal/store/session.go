package store

import (
	"strings"
	"time"

	"github.com/Anurag-122004/CIRC/internal/chat"
)

const defaultTitle = "New conversation"

// maxTitleLen bounds titles derived from the first user message.
const maxTitleLen = 40

// ImageRef points at the image attached to a vision session, together with the
// standalone analysis text the backend returned for it.
type ImageRef struct {
	Path     string `json:"path"`
	Analysis string `json:"analysis,omitempty"`
}

// Session is a durable conversation thread. LastMessageSummary and
// LastActivity are always derived from the tail of Messages.
type Session struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Messages           []chat.Message `json:"messages"`
	LastMessageSummary string         `json:"last_message_summary"`
	LastActivity       time.Time      `json:"last_activity"`
	Image              *ImageRef      `json:"image,omitempty"`
}

func newSession(id string) *Session {
	return &Session{
		ID:       id,
		Title:    defaultTitle,
		Messages: []chat.Message{},
	}
}

// Append adds a message to the session and refreshes the derived fields. The
// first user message also titles the session if it still carries the default.
func (s *Session) Append(msg chat.Message) {
	s.Messages = append(s.Messages, msg)
	s.LastMessageSummary = summarize(msg.Content)
	s.LastActivity = msg.Timestamp
	if s.Title == defaultTitle && msg.Role == chat.RoleUser {
		s.Title = summarize(msg.Content)
	}
}

// Replace swaps the message history wholesale and re-derives the tail fields.
func (s *Session) Replace(msgs []chat.Message) {
	s.Messages = append([]chat.Message(nil), msgs...)
	if len(s.Messages) == 0 {
		s.LastMessageSummary = ""
		s.LastActivity = time.Time{}
		return
	}
	tail := s.Messages[len(s.Messages)-1]
	s.LastMessageSummary = summarize(tail.Content)
	s.LastActivity = tail.Timestamp
}

// MessageCount returns the number of messages in the session.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// ShortID returns the shortened session ID (first 8 characters).
func (s *Session) ShortID() string {
	if len(s.ID) >= 8 {
		return s.ID[:8]
	}
	return s.ID
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Messages = append([]chat.Message(nil), s.Messages...)
	if s.Image != nil {
		img := *s.Image
		cp.Image = &img
	}
	return &cp
}

func summarize(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= maxTitleLen {
		return content
	}
	return strings.TrimSpace(string(runes[:maxTitleLen])) + "…"
}
