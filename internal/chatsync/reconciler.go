package chatsync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Anurag-122004/CIRC/internal/chat"
)

// Reconciler turns user input and inbound server events into the ordered,
// displayable message list. While a reply is pending it exposes a single
// awaiting flag instead of a placeholder message; the assistant message is
// appended only once the real reply arrives, so a reply that happens to look
// like a pending marker can never be confused with one.
//
// The reconciler is not safe for concurrent use on its own; the orchestrator
// serializes every transition through its event loop.
type Reconciler struct {
	messages []chat.Message
	awaiting bool
}

// NewReconciler returns an empty reconciler in the idle state.
func NewReconciler() *Reconciler {
	return &Reconciler{messages: []chat.Message{}}
}

// AppendUser records an outbound user message and enters the awaiting state.
// A second send while a reply is pending is rejected without touching state.
func (r *Reconciler) AppendUser(content string) (chat.Message, error) {
	if r.awaiting {
		return chat.Message{}, ErrAwaitingReply
	}
	msg := chat.NewMessage(chat.RoleUser, content)
	r.messages = append(r.messages, msg)
	r.awaiting = true
	return msg, nil
}

// ApplyReply decodes an inbound server frame and appends the assistant
// message. Malformed payloads are logged and leave the awaiting state intact
// so the user's own message never disappears from the visible list.
func (r *Reconciler) ApplyReply(payload []byte) (chat.Message, error) {
	content, err := decodeBotFrame(payload)
	if err != nil {
		log.Warn().Err(err).Str("component", "chatsync").Msg("dropping malformed server frame")
		return chat.Message{}, err
	}
	return r.ApplyText(content), nil
}

// ApplyText appends an assistant message and clears the awaiting flag. A
// reply arriving while idle (a stray or duplicate event) is still appended
// rather than dropped.
func (r *Reconciler) ApplyText(content string) chat.Message {
	if !r.awaiting {
		log.Debug().Str("component", "chatsync").Msg("reply received while idle, appending anyway")
	}
	msg := chat.NewMessage(chat.RoleAssistant, content)
	r.messages = append(r.messages, msg)
	r.awaiting = false
	return msg
}

// ClearAwaiting drops the pending flag without appending anything, used when
// the transport closes mid-exchange.
func (r *Reconciler) ClearAwaiting() {
	r.awaiting = false
}

// IsAwaiting reports whether a reply is pending.
func (r *Reconciler) IsAwaiting() bool {
	return r.awaiting
}

// Messages returns a copy of the visible list.
func (r *Reconciler) Messages() []chat.Message {
	return append([]chat.Message(nil), r.messages...)
}

// Reset replaces the visible list wholesale, e.g. when the user selects a
// stored session. Any pending exchange is abandoned.
func (r *Reconciler) Reset(msgs []chat.Message) {
	r.messages = append([]chat.Message(nil), msgs...)
	r.awaiting = false
}

// botFrame is the server->client wire shape: {"bot": string | [string, ...]}.
type botFrame struct {
	parts []string
}

func (f *botFrame) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Bot json.RawMessage `json:"bot"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	if len(envelope.Bot) == 0 {
		return fmt.Errorf("missing bot field")
	}

	var single string
	if err := json.Unmarshal(envelope.Bot, &single); err == nil {
		f.parts = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(envelope.Bot, &many); err != nil {
		return fmt.Errorf("bot field is neither string nor string array")
	}
	f.parts = many
	return nil
}

// decodeBotFrame extracts the display content from a server frame. A chunked
// reply is joined with single spaces, preserving chunk order.
func decodeBotFrame(payload []byte) (string, error) {
	var frame botFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return strings.Join(frame.parts, " "), nil
}
