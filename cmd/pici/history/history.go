package historycmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/picitalk/cmd/pici/components"
	"github.com/papercomputeco/picitalk/pkg/archive"
)

const historyLongDesc string = `Print archived conversations.

Without arguments every conversation branch in the archive is printed,
one per leaf. With a hash, only the conversation leading up to that
node is printed. The archive is the SQLite database configured as
archive.db_path, or the one given with --db.

Examples:
  pici history
  pici history --db ~/.pici/archive.db
  pici history --json 3f2a9c...`

const historyShortDesc string = "Print archived conversations"

var errNoArchive = errors.New("no archive database configured; set archive.db_path or pass --db")

type historyCommander struct {
	dbPath string
	asJSON bool
	color  string
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history [hash]",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := ""
			if len(args) == 1 {
				hash = args[0]
			}
			return cmder.run(cmd.Context(), cmd, hash)
		},
	}

	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to the archive SQLite database")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print histories as JSON")
	cmd.Flags().StringVar(&cmder.color, "color", "auto", "Colorize output: auto, always or never")

	return cmd
}

func (c *historyCommander) run(ctx context.Context, cmd *cobra.Command, hash string) error {
	out := cmd.OutOrStdout()
	renderer := lipgloss.NewRenderer(out)
	switch c.color {
	case "auto":
	case "always":
		renderer.SetColorProfile(termenv.TrueColor)
	case "never":
		renderer.SetColorProfile(termenv.Ascii)
	default:
		return fmt.Errorf("invalid --color %q: want auto, always or never", c.color)
	}
	header := renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#1E88E5"))

	dbPath, err := c.resolveDBPath(cmd)
	if err != nil {
		return err
	}

	store, err := archive.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("could not open archive %s: %w", dbPath, err)
	}
	defer store.Close()

	var histories []*archive.History
	if hash != "" {
		h, err := archive.BuildHistory(ctx, store, hash)
		if err != nil {
			return fmt.Errorf("could not build history: %w", err)
		}
		histories = []*archive.History{h}
	} else {
		histories, err = archive.Histories(ctx, store)
		if err != nil {
			return fmt.Errorf("could not list histories: %w", err)
		}
	}

	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(histories)
	}

	if len(histories) == 0 {
		fmt.Fprintln(out, "No archived conversations.")
		return nil
	}
	for i, h := range histories {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printHistory(out, header, h)
	}
	return nil
}

// resolveDBPath prefers --db over the configured path. The database must
// already exist; an empty archive is never created here.
func (c *historyCommander) resolveDBPath(cmd *cobra.Command) (string, error) {
	path := c.dbPath
	if path == "" {
		cfg, err := components.LoadConfig(cmd)
		if err != nil {
			return "", err
		}
		path = cfg.Archive.DBPath
	}
	if path == "" || path == ":memory:" {
		return "", errNoArchive
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("could not open archive: %w", err)
	}
	return path, nil
}

func printHistory(w io.Writer, header lipgloss.Style, h *archive.History) {
	fmt.Fprintln(w, header.Render(fmt.Sprintf("%s  image %s  (%d turns)",
		short(h.HeadHash), short(h.ImageDigest), len(h.Turns))))
	for _, t := range h.Turns {
		switch t.Role {
		case "user":
			fmt.Fprintf(w, "You: %s\n", t.Text)
		default:
			fmt.Fprintf(w, "Assistant: %s\n", t.Text)
		}
	}
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
