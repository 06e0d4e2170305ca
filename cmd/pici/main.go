package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/picitalk/cmd/pici/ask"
	chatcmder "github.com/papercomputeco/picitalk/cmd/pici/chat"
	"github.com/papercomputeco/picitalk/cmd/pici/components"
	historycmder "github.com/papercomputeco/picitalk/cmd/pici/history"
	servecmder "github.com/papercomputeco/picitalk/cmd/pici/serve"
)

const piciLongDesc string = `Pici-Talk answers questions about images.

Upload or photograph an image, ask about it by text or voice, and get a
text answer that can also be spoken aloud. Answers come from a
vision-language model served by an Ollama-compatible server; spoken
questions are transcribed with Whisper and answers are spoken with eSpeak.

Configuration is read from ~/.pici/config.toml when present.`

func newPiciCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pici",
		Short:         "Visual question answering by text and voice",
		Long:          piciLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String(components.FlagConfig, "", "Path to config file (default ~/.pici/config.toml)")
	cmd.PersistentFlags().Bool(components.FlagDebug, false, "Enable debug logging")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())

	return cmd
}

func main() {
	if err := newPiciCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
