package pushcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/cmd/promptgate/storepath"
	"github.com/papercomputeco/promptgate/pkg/storage"
)

const pushLongDesc string = `Push local saved prompts to a remote promptgate server.

Reads every prompt from the local store and POSTs it to the remote
server's /prompts endpoint. The server assigns new IDs, so prompts whose
name and text already exist remotely are skipped.

Examples:
  promptgate prompts push http://192.168.1.42:8000
  promptgate prompts push --store ~/.promptgate/promptgate.db http://localhost:8000`

const pushShortDesc string = "Push prompts to a remote promptgate server"

type pushCommander struct {
	store string
}

type savePromptRequest struct {
	Name        string `json:"name"`
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
}

type listPromptsResponse struct {
	Prompts map[string]storage.Prompt `json:"prompts"`
}

func NewPushCmd() *cobra.Command {
	cmder := &pushCommander{}

	cmd := &cobra.Command{
		Use:   "push <server-url>",
		Short: pushShortDesc,
		Long:  pushLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.store, "store", "s", "", "Local store location")

	return cmd
}

func (c *pushCommander) run(ctx context.Context, cmd *cobra.Command, serverURL string) error {
	serverURL = strings.TrimRight(serverURL, "/")

	storePath, err := storepath.Resolve(c.store)
	if err != nil {
		return fmt.Errorf("could not resolve local store: %w", err)
	}

	driver, err := storepath.Open(ctx, storePath, zap.NewNop())
	if err != nil {
		return fmt.Errorf("could not open local store %s: %w", storePath, err)
	}
	defer driver.Close()

	prompts, err := driver.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("could not list local prompts: %w", err)
	}

	if len(prompts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No local prompts to push.")
		return nil
	}

	remote, err := c.listRemote(ctx, serverURL)
	if err != nil {
		return fmt.Errorf("could not list remote prompts: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushing %d prompts from %s to %s\n", len(prompts), storePath, serverURL)

	var totalNew, totalDup int
	for _, p := range sorted(prompts) {
		if _, ok := remote[promptKey(p)]; ok {
			totalDup++
			continue
		}

		if err := c.postPrompt(ctx, serverURL, p); err != nil {
			return fmt.Errorf("push failed on prompt %s: %w", p.ID, err)
		}
		remote[promptKey(p)] = struct{}{}
		totalNew++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d new prompts (%d already existed)\n", totalNew, totalDup)

	return nil
}

// listRemote returns the set of name and text pairs the server holds.
func (c *pushCommander) listRemote(ctx context.Context, serverURL string) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/prompts", nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result listPromptsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("could not decode response: %w", err)
	}

	keys := make(map[string]struct{}, len(result.Prompts))
	for _, p := range result.Prompts {
		keys[promptKey(p)] = struct{}{}
	}
	return keys, nil
}

func (c *pushCommander) postPrompt(ctx context.Context, serverURL string, p storage.Prompt) error {
	body, err := json.Marshal(savePromptRequest{
		Name:        p.Name,
		Prompt:      p.Prompt,
		Description: p.Description,
	})
	if err != nil {
		return fmt.Errorf("could not marshal prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/prompts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func promptKey(p storage.Prompt) string {
	return p.Name + "\x00" + p.Prompt
}

// sorted orders prompts by creation time so the remote library keeps the
// local order.
func sorted(prompts map[string]storage.Prompt) []storage.Prompt {
	out := make([]storage.Prompt, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
