package historycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/relay/cmd/relay/stack"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/session"
)

const historyLongDesc string = `Show the stored conversation for a key.

Reads the session stored under <key> (for example
5511999999999@s.whatsapp.net) from the configured store and prints
its turns oldest first.

Examples:
  relay history 5511999999999@s.whatsapp.net
  relay history --json 5511999999999@s.whatsapp.net`

const historyShortDesc string = "Show the stored conversation for a key"

type historyCommander struct {
	asJSON bool
	plain  bool
}

// markdown renders assistant replies for a terminal.
type markdown interface {
	Render(in string) (string, error)
}

// sessionView is the --json output.
type sessionView struct {
	Key      string     `json:"key"`
	Turns    []llm.Turn `json:"turns"`
	Degraded bool       `json:"degraded,omitempty"`
}

var (
	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
)

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history <key>",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg, args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the session as JSON")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Never render markdown")

	return cmd
}

func (c *historyCommander) run(ctx context.Context, out io.Writer, cfg *config.Config, key string) error {
	driver, err := stack.OpenDriver(ctx, cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer driver.Close()

	sess, err := stack.NewStore(driver, cfg, zap.NewNop()).Load(ctx, key)
	if err != nil {
		return fmt.Errorf("could not load session %s: %w", key, err)
	}

	if c.asJSON {
		return writeJSON(out, sess)
	}

	return render(out, sess, c.markdownRenderer(out))
}

func writeJSON(out io.Writer, sess *session.Session) error {
	turns := sess.Turns
	if turns == nil {
		turns = []llm.Turn{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(sessionView{Key: sess.Key, Turns: turns, Degraded: sess.Degraded})
}

// render prints sess for a reader. User turns are printed verbatim; only
// assistant turns go through md, when it is set.
func render(out io.Writer, sess *session.Session, md markdown) error {
	if sess.Degraded {
		fmt.Fprintln(out, dimStyle.Render("stored value for "+sess.Key+" is unreadable"))
		return nil
	}
	if sess.Len() == 0 {
		fmt.Fprintf(out, "No stored conversation for %s.\n", sess.Key)
		return nil
	}

	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s (%d turns)", sess.Key, sess.Len())))
	for _, t := range sess.Turns {
		label := userLabel.Render("user")
		if t.Role == llm.RoleAssistant {
			label = assistantLabel.Render("assistant")
		}

		body := t.Content
		if md != nil && t.Role == llm.RoleAssistant {
			if rendered, err := md.Render(t.Content); err == nil {
				body = strings.TrimRight(rendered, "\n")
			}
		}

		fmt.Fprintf(out, "\n%s\n%s\n", label, body)
	}

	return nil
}

// markdownRenderer returns a glamour renderer when out is a terminal, or nil.
func (c *historyCommander) markdownRenderer(out io.Writer) markdown {
	if c.plain {
		return nil
	}
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}

	width := 80
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		width = w
	}

	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}
