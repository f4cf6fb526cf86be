package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/promptgate/pkg/gateway"
	"github.com/papercomputeco/promptgate/pkg/llm"
)

const chatLongDesc string = `Send one message to a running promptgate server and print the reply.

Tokens are printed as they stream in. With --markdown the reply is
buffered and rendered once complete; this is the default when stdout
is a terminal.

Examples:
  promptgate chat "Why is the sky blue?"
  promptgate chat --model mistral --temperature 0.2 "Summarize RFC 2616"
  promptgate chat --server http://gpu-box:8000 --system "Answer in French." "Hello"`

const chatShortDesc string = "Chat with a promptgate server"

const defaultServer = "http://localhost:8000"

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

type chatCommander struct {
	server        string
	model         string
	system        string
	temperature   float64
	topP          float64
	numCtx        int
	repeatPenalty float64
	markdown      bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:           "chat <message>",
		Short:         chatShortDesc,
		Long:          chatLongDesc,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmder.run(cmd.Context(), cmd, args[0])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("Error: "+err.Error()))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&cmder.server, "server", defaultServer, "promptgate server URL")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model override")
	cmd.Flags().StringVar(&cmder.system, "system", "", "System prompt override")
	cmd.Flags().Float64Var(&cmder.temperature, "temperature", 0, "Temperature override")
	cmd.Flags().Float64Var(&cmder.topP, "top-p", 0, "Top-p override")
	cmd.Flags().IntVar(&cmder.numCtx, "num-ctx", 0, "Context window override")
	cmd.Flags().Float64Var(&cmder.repeatPenalty, "repeat-penalty", 0, "Repeat penalty override")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render the reply as markdown")

	return cmd
}

// message only carries the overrides that were set explicitly.
func (c *chatCommander) message(cmd *cobra.Command, text string) llm.ChatMessage {
	msg := llm.ChatMessage{Message: text, Model: c.model}

	flags := cmd.Flags()
	if flags.Changed("system") {
		msg.SystemPrompt = &c.system
	}
	if flags.Changed("temperature") {
		msg.Temperature = &c.temperature
	}
	if flags.Changed("top-p") {
		msg.TopP = &c.topP
	}
	if flags.Changed("num-ctx") {
		msg.NumCtx = &c.numCtx
	}
	if flags.Changed("repeat-penalty") {
		msg.RepeatPenalty = &c.repeatPenalty
	}
	return msg
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command, text string) error {
	markdown := c.markdown
	if !cmd.Flags().Changed("markdown") {
		markdown = isTerminal(cmd.OutOrStdout())
	}

	body, err := json.Marshal(c.message(cmd, text))
	if err != nil {
		return fmt.Errorf("could not marshal message: %w", err)
	}

	serverURL := strings.TrimRight(c.server, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	out := cmd.OutOrStdout()
	var reply strings.Builder
	var streamErr error

	errDone := errors.New("done")
	err = gateway.DecodeEvents(resp.Body, func(ev gateway.Event) error {
		switch {
		case ev.Error != "":
			streamErr = errors.New(ev.Error)
			return errDone
		case ev.Done:
			return errDone
		case ev.Response != nil:
			if markdown {
				reply.WriteString(*ev.Response)
				return nil
			}
			_, err := io.WriteString(out, *ev.Response)
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDone) {
		return fmt.Errorf("could not read stream: %w", err)
	}

	if markdown && reply.Len() > 0 {
		if err := render(out, reply.String()); err != nil {
			return err
		}
	} else if !markdown {
		fmt.Fprintln(out)
	}

	return streamErr
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	var errResp llm.ErrorResponse
	if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}

func render(w io.Writer, text string) error {
	width := 100
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("could not create markdown renderer: %w", err)
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return fmt.Errorf("could not render markdown: %w", err)
	}

	_, err = io.WriteString(w, rendered)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
