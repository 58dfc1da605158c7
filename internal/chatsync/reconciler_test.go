package chatsync

import (
	"errors"
	"testing"

	"github.com/Anurag-122004/CIRC/internal/chat"
)

func TestDecodeBotFrame(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{
			name:    "single string",
			payload: `{"bot":"hi there"}`,
			want:    "hi there",
		},
		{
			name:    "chunked reply joined in order",
			payload: `{"bot":["part1","part2"]}`,
			want:    "part1 part2",
		},
		{
			name:    "three chunks",
			payload: `{"bot":["a","b","c"]}`,
			want:    "a b c",
		},
		{
			name:    "empty string",
			payload: `{"bot":""}`,
			want:    "",
		},
		{
			name:    "missing bot field",
			payload: `{"reply":"hi"}`,
			wantErr: true,
		},
		{
			name:    "bot is a number",
			payload: `{"bot":42}`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `hello`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBotFrame([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("decodeBotFrame() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("decodeBotFrame() error = %v, want ErrMalformedPayload", err)
			}
			if got != tt.want {
				t.Errorf("decodeBotFrame() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReconcilerSendReceive(t *testing.T) {
	r := NewReconciler()

	if r.IsAwaiting() {
		t.Fatal("new reconciler should be idle")
	}

	if _, err := r.AppendUser("hello"); err != nil {
		t.Fatalf("AppendUser() error = %v", err)
	}
	if !r.IsAwaiting() {
		t.Fatal("should be awaiting after send")
	}

	if _, err := r.ApplyReply([]byte(`{"bot":"hi there"}`)); err != nil {
		t.Fatalf("ApplyReply() error = %v", err)
	}
	if r.IsAwaiting() {
		t.Fatal("should be idle after reply")
	}

	msgs := r.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("first message = %v %q", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != chat.RoleAssistant || msgs[1].Content != "hi there" {
		t.Errorf("second message = %v %q", msgs[1].Role, msgs[1].Content)
	}
	if msgs[1].Timestamp.Before(msgs[0].Timestamp) {
		t.Error("timestamps must be non-decreasing")
	}
}

func TestReconcilerRejectsSecondSendWhileAwaiting(t *testing.T) {
	r := NewReconciler()

	if _, err := r.AppendUser("a"); err != nil {
		t.Fatalf("AppendUser() error = %v", err)
	}
	if _, err := r.AppendUser("b"); !errors.Is(err, ErrAwaitingReply) {
		t.Fatalf("second send error = %v, want ErrAwaitingReply", err)
	}
	if got := len(r.Messages()); got != 1 {
		t.Fatalf("got %d messages after rejected send, want 1", got)
	}
	if !r.IsAwaiting() {
		t.Fatal("rejected send must not clear the pending flag")
	}
}

func TestReconcilerMalformedPayloadKeepsAwaiting(t *testing.T) {
	r := NewReconciler()

	if _, err := r.AppendUser("hello"); err != nil {
		t.Fatalf("AppendUser() error = %v", err)
	}
	if _, err := r.ApplyReply([]byte("not json")); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("ApplyReply() error = %v, want ErrMalformedPayload", err)
	}
	if !r.IsAwaiting() {
		t.Fatal("malformed payload must leave the awaiting state intact")
	}
	msgs := r.Messages()
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Fatal("the user's message must stay visible")
	}
}

func TestReconcilerStrayReplyIsAppended(t *testing.T) {
	r := NewReconciler()

	msg, err := r.ApplyReply([]byte(`{"bot":"unexpected"}`))
	if err != nil {
		t.Fatalf("ApplyReply() error = %v", err)
	}
	if msg.Role != chat.RoleAssistant {
		t.Errorf("stray reply role = %v, want assistant", msg.Role)
	}
	if got := len(r.Messages()); got != 1 {
		t.Fatalf("got %d messages, want 1 (stray replies are kept, not dropped)", got)
	}
}

func TestReconcilerReset(t *testing.T) {
	r := NewReconciler()
	if _, err := r.AppendUser("draft"); err != nil {
		t.Fatalf("AppendUser() error = %v", err)
	}

	stored := []chat.Message{
		chat.NewMessage(chat.RoleUser, "one"),
		chat.NewMessage(chat.RoleAssistant, "two"),
		chat.NewMessage(chat.RoleUser, "three"),
	}
	r.Reset(stored)

	if r.IsAwaiting() {
		t.Fatal("reset must abandon the pending exchange")
	}
	msgs := r.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].Content != want {
			t.Errorf("messages[%d].Content = %q, want %q", i, msgs[i].Content, want)
		}
	}
}
