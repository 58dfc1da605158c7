package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Anurag-122004/CIRC/internal/chat"
)

func TestStoreSaveLoadFixedPoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")

	st := Open(path)
	st.Upsert("sess-1", func(s *Session) {
		s.Append(chat.NewMessage(chat.RoleUser, "how do I reset my password?"))
		s.Append(chat.NewMessage(chat.RoleAssistant, "use the account page"))
	})
	st.Upsert("sess-2", func(s *Session) {
		s.Append(chat.NewMessage(chat.RoleUser, "and billing?"))
	})
	require.NoError(t, st.Save())

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// Loading what was saved and saving again must not change the file.
	st2 := Open(path)
	require.Equal(t, 2, st2.Len())
	require.NoError(t, st2.Save())

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, string(first), string(second))
}

func TestStoreCorruptedSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "sessions": [`), 0644))

	st := Open(path)
	require.Equal(t, 0, st.Len())

	// The store still works and the next save repairs the file.
	st.Upsert("sess-1", nil)
	require.NoError(t, st.Save())
	require.Equal(t, 1, Open(path).Len())
}

func TestStoreMissingSnapshotStartsEmpty(t *testing.T) {
	st := Open(filepath.Join(t.TempDir(), "nope", "chat.json"))
	require.Equal(t, 0, st.Len())
}

func TestStoreMigratesLegacyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	legacy := `[
  {"id": "legacy-1", "title": "Old thread", "messages": [
    {"id": "m1", "content": "hello", "role": "user", "timestamp": "2025-03-01T10:00:00Z"}
  ], "last_message_summary": "hello", "last_activity": "2025-03-01T10:00:00Z"}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	st := Open(path)
	require.Equal(t, 1, st.Len())
	sess, err := st.Select("legacy-1")
	require.NoError(t, err)
	require.Equal(t, "Old thread", sess.Title)
	require.Equal(t, 1, sess.MessageCount())

	// Saving rewrites the legacy shape into the versioned one.
	require.NoError(t, st.Save())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"version": 1`)
}

func TestStoreUpsertKeepsInsertionOrder(t *testing.T) {
	st := Open(filepath.Join(t.TempDir(), "chat.json"))

	st.Upsert("a-sess", nil)
	st.Upsert("b-sess", nil)
	st.Upsert("c-sess", nil)

	// Mutating an early session must not move it.
	st.Upsert("a-sess", func(s *Session) {
		s.Append(chat.NewMessage(chat.RoleUser, "bump"))
	})

	var ids []string
	for _, sess := range st.Sessions() {
		ids = append(ids, sess.ID)
	}
	require.Equal(t, []string{"a-sess", "b-sess", "c-sess"}, ids)
}

func TestStoreUpsertReturnsCopy(t *testing.T) {
	st := Open(filepath.Join(t.TempDir(), "chat.json"))

	got := st.Upsert("sess-1", func(s *Session) {
		s.Append(chat.NewMessage(chat.RoleUser, "hello"))
	})
	got.Messages[0].Content = "mutated"
	got.Title = "mutated"

	sess, err := st.Select("sess-1")
	require.NoError(t, err)
	require.Equal(t, "hello", sess.Messages[0].Content)
	require.Equal(t, "hello", sess.Title)
}

func TestStoreSelectNotFound(t *testing.T) {
	st := Open(filepath.Join(t.TempDir(), "chat.json"))
	_, err := st.Select("missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreFindByPrefix(t *testing.T) {
	st := Open(filepath.Join(t.TempDir(), "chat.json"))
	st.Upsert("abcd1234", nil)
	st.Upsert("abce5678", nil)

	sess, err := st.FindByPrefix("abcd")
	require.NoError(t, err)
	require.Equal(t, "abcd1234", sess.ID)

	_, err = st.FindByPrefix("abc")
	require.ErrorContains(t, err, "at least 4 characters")

	_, err = st.FindByPrefix("abcz")
	require.ErrorIs(t, err, ErrSessionNotFound)

	st.Upsert("abcd9999", nil)
	_, err = st.FindByPrefix("abcd")
	require.ErrorContains(t, err, "ambiguous")
}

func TestSessionTitleFromFirstUserMessage(t *testing.T) {
	sess := newSession("sess-1")
	require.Equal(t, defaultTitle, sess.Title)

	sess.Append(chat.NewMessage(chat.RoleAssistant, "welcome"))
	require.Equal(t, defaultTitle, sess.Title)

	sess.Append(chat.NewMessage(chat.RoleUser, "what plans do you offer for small teams exactly?"))
	require.Equal(t, "what plans do you offer for small teams…", sess.Title)

	// Later user messages never retitle.
	sess.Append(chat.NewMessage(chat.RoleUser, "second question"))
	require.Equal(t, "what plans do you offer for small teams…", sess.Title)
	require.Equal(t, "second question", sess.LastMessageSummary)
}

func TestSessionReplaceRederivesTail(t *testing.T) {
	sess := newSession("sess-1")
	sess.Append(chat.NewMessage(chat.RoleUser, "hello"))

	msgs := []chat.Message{
		chat.NewMessage(chat.RoleUser, "restored question"),
		chat.NewMessage(chat.RoleAssistant, "restored answer"),
	}
	sess.Replace(msgs)
	require.Equal(t, "restored answer", sess.LastMessageSummary)
	require.Equal(t, msgs[1].Timestamp, sess.LastActivity)

	sess.Replace(nil)
	require.Empty(t, sess.LastMessageSummary)
	require.True(t, sess.LastActivity.IsZero())
	require.Equal(t, 0, sess.MessageCount())
}
