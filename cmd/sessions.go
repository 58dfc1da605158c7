package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Anurag-122004/CIRC/internal/chat"
	"github.com/Anurag-122004/CIRC/internal/config"
	"github.com/Anurag-122004/CIRC/internal/store"
)

var sessionsVision bool

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse stored conversation history",
	Long: `Browse the local session registry.

Plain chat and vision chat keep separate registries; pass --vision to work
with the vision one.`,
}

func openRegistry() (*store.Store, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	name := "chat.json"
	if sessionsVision {
		name = "vision.json"
	}
	return store.Open(filepath.Join(cfg.DataDir, name)), nil
}

// sessionsListCmd represents the sessions list command
var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Long:  `List all stored sessions in the order they were created.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openRegistry()
		if err != nil {
			return err
		}

		sessions := st.Sessions()
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			fmt.Println("\nStart a conversation with:")
			fmt.Println("  circ chat \"your message\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLAST ACTIVITY\tMESSAGES\tTITLE")
		fmt.Fprintln(w, "--\t-------------\t--------\t-----")
		for _, sess := range sessions {
			last := "-"
			if !sess.LastActivity.IsZero() {
				last = sess.LastActivity.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				sess.ShortID(),
				last,
				sess.MessageCount(),
				sess.Title,
			)
		}
		w.Flush()

		fmt.Println("\nUse 'circ sessions show <id>' to view a session.")
		return nil
	},
}

// sessionsShowCmd represents the sessions show command
var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show session details and history",
	Long: `Show a session's metadata and full message history.

The ID can be a short prefix (minimum 4 characters) or the full session id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openRegistry()
		if err != nil {
			return err
		}

		sess, err := st.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding session: %w", err)
		}

		fmt.Printf("Session: %s\n", sess.ID)
		fmt.Printf("Title: %s\n", sess.Title)
		if sess.Image != nil {
			fmt.Printf("Image: %s\n", sess.Image.Path)
			if sess.Image.Analysis != "" {
				fmt.Printf("Analysis: %s\n", sess.Image.Analysis)
			}
		}
		if !sess.LastActivity.IsZero() {
			fmt.Printf("Last activity: %s\n", sess.LastActivity.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("Messages: %d\n", sess.MessageCount())
		fmt.Println()

		if len(sess.Messages) == 0 {
			fmt.Println("No messages in this session.")
			return nil
		}

		fmt.Println("Message History:")
		fmt.Println("----------------")
		for i, msg := range sess.Messages {
			roleLabel := "You"
			if msg.Role == chat.RoleAssistant {
				roleLabel = "Assistant"
			}
			fmt.Printf("\n[%d] %s (%s):\n%s\n",
				i+1,
				roleLabel,
				msg.Timestamp.Format("2006-01-02 15:04:05"),
				msg.Content,
			)
		}

		reopen := "circ chat"
		if sessionsVision {
			reopen = "circ vision"
		}
		fmt.Printf("\nReopen this session with:\n  %s -s %s\n", reopen, sess.ShortID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)

	sessionsCmd.PersistentFlags().BoolVar(&sessionsVision, "vision", false, "Use the vision session registry")
}
