package vision

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Anurag-122004/CIRC/internal/chat"
	"github.com/Anurag-122004/CIRC/internal/chatsync"
	"github.com/Anurag-122004/CIRC/internal/store"
)

// Conversation drives one image-analysis chat. Unlike the plain chat feature
// there is no bootstrap or socket: the session is created explicitly when an
// image is attached, and every exchange is a blocking request/response with
// the awaiting flag spanning the round-trip.
type Conversation struct {
	client *Client
	store  *store.Store

	mu        sync.Mutex
	rec       *chatsync.Reconciler
	sessionID string
	imagePath string
}

// NewConversation wires a conversation over the vision registry. The registry
// must be separate from the plain chat one.
func NewConversation(client *Client, st *store.Store) *Conversation {
	return &Conversation{
		client: client,
		store:  st,
		rec:    chatsync.NewReconciler(),
	}
}

// Attach binds an image to the conversation, explicitly creating the session
// that will carry the exchanges about it.
func (c *Conversation) Attach(imagePath string) *store.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	c.sessionID = id
	c.imagePath = imagePath
	c.rec.Reset(nil)

	sess := c.store.Upsert(id, func(s *store.Session) {
		s.Image = &store.ImageRef{Path: imagePath}
	})
	if err := c.store.Save(); err != nil {
		log.Warn().Err(err).Str("component", "vision").Msg("persist registry failed")
	}
	return sess
}

// Send runs one exchange: the user message is appended optimistically, the
// analysis request blocks, and the assistant reply is appended on success. On
// failure the awaiting flag is dropped so the user can retry; their message
// stays visible.
func (c *Conversation) Send(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return "", fmt.Errorf("no image attached")
	}
	userMsg, err := c.rec.AppendUser(text)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	imagePath := c.imagePath
	c.persistLocked(userMsg)
	c.mu.Unlock()

	reply, err := c.client.Analyze(ctx, text, imagePath)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.rec.ClearAwaiting()
		return "", err
	}
	botMsg := c.rec.ApplyText(reply)
	c.store.Upsert(c.sessionID, func(s *store.Session) {
		if s.Image != nil && s.Image.Analysis == "" {
			s.Image.Analysis = reply
		}
	})
	c.persistLocked(botMsg)
	return reply, nil
}

// SelectSession replaces the visible list with a stored vision session,
// including its attached image.
func (c *Conversation) SelectSession(id string) (*store.Session, error) {
	sess, err := c.store.Select(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sess.ID
	if sess.Image != nil {
		c.imagePath = sess.Image.Path
	}
	c.rec.Reset(sess.Messages)
	return sess, nil
}

// Messages returns the visible list.
func (c *Conversation) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Messages()
}

// IsAwaitingReply reports whether an analysis request is in flight.
func (c *Conversation) IsAwaitingReply() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.IsAwaiting()
}

// Sessions returns the vision registry in insertion order.
func (c *Conversation) Sessions() []*store.Session {
	return c.store.Sessions()
}

func (c *Conversation) persistLocked(msg chat.Message) {
	id := c.sessionID
	if id == "" {
		return
	}
	c.store.Upsert(id, func(s *store.Session) {
		s.Append(msg)
	})
	if err := c.store.Save(); err != nil {
		log.Warn().Err(err).Str("component", "vision").Msg("persist registry failed")
	}
}
