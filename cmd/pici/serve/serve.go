package servecmder

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/picitalk/cmd/pici/components"
	"github.com/papercomputeco/picitalk/pkg/session"
	"github.com/papercomputeco/picitalk/server"
)

const serveLongDesc string = `Run the Pici-Talk web server.

Serves the browser UI and the JSON API. The vision-language model is probed
at startup: the fine-tuned adapter is used when the model server has it,
otherwise the base model. Startup continues when the model server is
unreachable; questions are answered with an apology until it comes up.

Examples:
  pici serve
  pici serve --listen :9090 --config ./pici.toml`

const serveShortDesc string = "Run the web server"

type serveCommander struct {
	listen string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (overrides config)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := components.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if c.listen != "" {
		cfg.Listen = c.listen
	}

	comps, err := components.New(cfg, components.LogStdout)
	if err != nil {
		return err
	}
	defer comps.Close()
	log := comps.Logger

	if err := comps.VLM.Load(ctx); err != nil {
		log.Warn("could not load model, answers will fail until the model server is reachable",
			zap.String("url", cfg.VLM.URL),
			zap.Error(err),
		)
	}

	sessions := session.NewStore(cfg.Session.IdleTimeout, cfg.TTS.Voice)
	srv := server.New(server.Config{ListenAddr: cfg.Listen}, comps.Service, sessions, comps.Archive, comps.VLM, log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return srv.Close()
	}
}
