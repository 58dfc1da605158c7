package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Anurag-122004/CIRC/internal/chat"
	"github.com/Anurag-122004/CIRC/internal/chatsync"
	"github.com/Anurag-122004/CIRC/internal/config"
	"github.com/Anurag-122004/CIRC/internal/store"
)

var chatSessionID string

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the assistant in real time",
	Long: `Open a real-time chat session against the backend.

If a message is provided as an argument, it is sent once and the reply is
printed. Without arguments an interactive prompt is opened; Ctrl-D quits.

Every conversation is persisted to the local session registry. Use
'circ sessions list' to browse past conversations and --session to reopen one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st := store.Open(filepath.Join(cfg.DataDir, "chat.json"))
		boot := chatsync.NewBootstrapper(cfg.APIBaseURL, cfg.RequestTimeout())
		ch, err := chatsync.NewChannel(cfg.APIBaseURL)
		if err != nil {
			return fmt.Errorf("building channel: %w", err)
		}

		orch := chatsync.NewOrchestrator(boot, ch, st)
		defer orch.Close()

		if err := orch.Initialize(ctx); err != nil {
			return fmt.Errorf("initializing chat: %w", err)
		}
		snapshots := orch.Subscribe()

		if chatSessionID != "" {
			sess, err := st.FindByPrefix(chatSessionID)
			if err != nil {
				return fmt.Errorf("finding session: %w", err)
			}
			if err := orch.SelectSession(sess.ID); err != nil {
				return fmt.Errorf("selecting session: %w", err)
			}
			renderHistory(sess.Messages)
		}

		if len(args) > 0 {
			return sendAndWait(ctx, orch, snapshots, strings.Join(args, " "), cfg.RequestTimeout())
		}

		fmt.Fprintln(os.Stderr, "Connected. Type a message and press Enter (Ctrl-D to quit).")
		scanner := newLineScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if err := sendAndWait(ctx, orch, snapshots, text, cfg.RequestTimeout()); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if ctx.Err() != nil {
				break
			}
		}
		return scanner.Err()
	},
}

// sendAndWait dispatches one message and blocks on the snapshot stream until
// the pending reply resolves.
func sendAndWait(ctx context.Context, orch *chatsync.Orchestrator, snapshots <-chan chatsync.Snapshot, text string, timeout time.Duration) error {
	drain(snapshots)
	if err := orch.SendUserMessage(text); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	sawPending := false
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return chatsync.ErrClosed
			}
			if snap.Awaiting {
				sawPending = true
				continue
			}
			if !sawPending {
				continue
			}
			if n := len(snap.Messages); n > 0 && snap.Messages[n-1].Role == chat.RoleAssistant {
				fmt.Println(snap.Messages[n-1].Content)
			}
			return nil
		case <-timer.C:
			return fmt.Errorf("timed out waiting for reply")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// maxInputLine bounds one REPL input line; the bufio default of 64KB cuts off
// large pastes.
const maxInputLine = 1 << 20

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxInputLine)
	return scanner
}

func drain(snapshots <-chan chatsync.Snapshot) {
	for {
		select {
		case <-snapshots:
		default:
			return
		}
	}
}

func renderHistory(msgs []chat.Message) {
	for _, msg := range msgs {
		label := "You"
		if msg.Role == chat.RoleAssistant {
			label = "Assistant"
		}
		fmt.Printf("%s (%s): %s\n", label, msg.Timestamp.Format("15:04:05"), msg.Content)
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "Reopen a stored session (short or full id)")
}
