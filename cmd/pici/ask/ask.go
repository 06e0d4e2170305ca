package askcmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/picitalk/cmd/pici/components"
	"github.com/papercomputeco/picitalk/pkg/session"
	"github.com/papercomputeco/picitalk/pkg/stt"
	"github.com/papercomputeco/picitalk/pkg/vqa"
)

const askLongDesc string = `Ask one question about an image and print the answer.

The question is either typed with --question or recorded audio passed with
--audio, which is transcribed first. With --speak the answer is also
synthesized to the given WAV file.

Examples:
  pici ask --image cat.jpg --question "What colour is the cat?"
  pici ask --image cat.jpg --audio question.wav --speak answer.wav`

const askShortDesc string = "Ask a single question about an image"

type askCommander struct {
	imagePath string
	question  string
	audioPath string
	speakPath string
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.imagePath, "image", "i", "", "Path to a JPEG or PNG image")
	cmd.Flags().StringVarP(&cmder.question, "question", "q", "", "Question to ask")
	cmd.Flags().StringVarP(&cmder.audioPath, "audio", "a", "", "Recorded question to transcribe")
	cmd.Flags().StringVar(&cmder.speakPath, "speak", "", "Write the spoken answer to this WAV file")
	_ = cmd.MarkFlagRequired("image")
	cmd.MarkFlagsMutuallyExclusive("question", "audio")
	cmd.MarkFlagsOneRequired("question", "audio")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := components.LoadConfig(cmd)
	if err != nil {
		return err
	}
	comps, err := components.New(cfg, components.LogStderr)
	if err != nil {
		return err
	}
	defer comps.Close()

	if err := comps.VLM.Load(ctx); err != nil {
		comps.Logger.Warn("could not load model", zap.Error(err))
	}

	sess := session.NewStore(cfg.Session.IdleTimeout, cfg.TTS.Voice).Create()

	f, err := os.Open(c.imagePath)
	if err != nil {
		return fmt.Errorf("could not open image: %w", err)
	}
	defer f.Close()

	if _, err := comps.Service.SetImage(ctx, sess, f, session.SourceUpload); err != nil {
		return err
	}

	speak := c.speakPath != ""
	var reply *vqa.Reply
	if c.audioPath != "" {
		data, err := os.ReadFile(c.audioPath)
		if err != nil {
			return fmt.Errorf("could not read audio: %w", err)
		}
		reply, err = comps.Service.AskByVoice(ctx, sess, stt.Audio{Data: data, Filename: filepath.Base(c.audioPath)}, speak)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "You: %s\n", reply.Question)
	} else {
		reply, err = comps.Service.Ask(ctx, sess, c.question, speak)
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), reply.Answer)

	if !speak {
		return nil
	}
	if reply.SpeechError != "" {
		return errors.New(reply.SpeechError)
	}
	if err := os.WriteFile(c.speakPath, reply.Audio, 0o644); err != nil {
		return fmt.Errorf("could not write spoken answer: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Spoken answer written to %s\n", c.speakPath)
	return nil
}
