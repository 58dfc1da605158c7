package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Anurag-122004/CIRC/internal/config"
	"github.com/Anurag-122004/CIRC/internal/store"
	"github.com/Anurag-122004/CIRC/internal/vision"
)

var (
	visionImagePath string
	visionSessionID string
)

// visionCmd represents the vision command
var visionCmd = &cobra.Command{
	Use:   "vision [message]",
	Short: "Chat about an image",
	Long: `Attach an image and chat about it. Each message is sent together with
the image to the backend's analyze-image endpoint.

A new session is created the moment an image is attached. Vision sessions are
kept in their own registry, separate from plain chat history; use
'circ sessions list --vision' to browse them and --session to reopen one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if visionImagePath == "" && visionSessionID == "" {
			return fmt.Errorf("either --image or --session is required")
		}
		if visionImagePath != "" && visionSessionID != "" {
			return fmt.Errorf("cannot specify both --image and --session")
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st := store.Open(filepath.Join(cfg.DataDir, "vision.json"))
		client := vision.NewClient(cfg.APIBaseURL, cfg.RequestTimeout())
		conv := vision.NewConversation(client, st)

		if visionSessionID != "" {
			sess, err := st.FindByPrefix(visionSessionID)
			if err != nil {
				return fmt.Errorf("finding session: %w", err)
			}
			if _, err := conv.SelectSession(sess.ID); err != nil {
				return fmt.Errorf("selecting session: %w", err)
			}
			if sess.Image != nil {
				fmt.Fprintf(os.Stderr, "Image: %s\n", sess.Image.Path)
			}
			renderHistory(sess.Messages)
		} else {
			if _, err := os.Stat(visionImagePath); err != nil {
				return fmt.Errorf("image not found: %w", err)
			}
			sess := conv.Attach(visionImagePath)
			fmt.Fprintf(os.Stderr, "Image attached, session %s created.\n", sess.ShortID())
		}

		if len(args) > 0 {
			reply, err := conv.Send(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("analyzing image: %w", err)
			}
			fmt.Println(reply)
			return nil
		}

		fmt.Fprintln(os.Stderr, "Ask about the image and press Enter (Ctrl-D to quit).")
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
			reply, err := conv.Send(ctx, text)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			} else {
				fmt.Println(reply)
			}
			if ctx.Err() != nil {
				break
			}
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(visionCmd)

	visionCmd.Flags().StringVarP(&visionImagePath, "image", "i", "", "Path to the image to analyze (jpg/png)")
	visionCmd.Flags().StringVarP(&visionSessionID, "session", "s", "", "Reopen a stored vision session (short or full id)")
}
