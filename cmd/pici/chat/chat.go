package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/picitalk/cmd/pici/components"
	"github.com/papercomputeco/picitalk/pkg/session"
)

const chatLongDesc string = `Chat about an image in the terminal.

Type questions about the image and read the answers as they arrive.

Commands:
  /image PATH   switch to another image (starts a new conversation)
  /reset        start a new conversation about the current image
  /quit         leave (also Esc or Ctrl+C)

Examples:
  pici chat --image kitchen.jpg`

const chatShortDesc string = "Chat about an image in the terminal"

var errNotTerminal = errors.New("chat needs an interactive terminal; use \"pici ask\" instead")

type chatCommander struct {
	imagePath string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.imagePath, "image", "i", "", "Path to a JPEG or PNG image")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errNotTerminal
	}

	cfg, err := components.LoadConfig(cmd)
	if err != nil {
		return err
	}
	comps, err := components.New(cfg, components.LogDiscard)
	if err != nil {
		return err
	}
	defer comps.Close()

	if err := comps.VLM.Load(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not load model, answers will fail: %v\n", err)
	}

	sess := session.NewStore(cfg.Session.IdleTimeout, cfg.TTS.Voice).Create()
	if _, err := setImage(ctx, comps.Service, sess, c.imagePath); err != nil {
		return fmt.Errorf("could not load image %s: %w", c.imagePath, err)
	}

	p := tea.NewProgram(
		newChatModel(ctx, comps.Service, sess, c.imagePath),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
