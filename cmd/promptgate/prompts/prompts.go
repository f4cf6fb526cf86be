package promptscmder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mergecmder "github.com/papercomputeco/promptgate/cmd/promptgate/prompts/merge"
	pushcmder "github.com/papercomputeco/promptgate/cmd/promptgate/prompts/push"
	"github.com/papercomputeco/promptgate/cmd/promptgate/storepath"
	"github.com/papercomputeco/promptgate/pkg/storage"
)

const promptsLongDesc string = `Manage the saved system-prompt library.

Saved prompts can be selected in the web UI or with POST /prompts/use.
When a chat request's system prompt matches a saved prompt exactly, the
gateway tags it with the prompt's ID on the way to Ollama.`

const promptsShortDesc string = "Manage saved system prompts"

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

type promptsCommander struct {
	store string
}

func NewPromptsCmd() *cobra.Command {
	cmder := &promptsCommander{}

	cmd := &cobra.Command{
		Use:   "prompts",
		Short: promptsShortDesc,
		Long:  promptsLongDesc,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.list(cmd.Context(), cmd)
		},
	}
	list.Flags().StringVarP(&cmder.store, "store", "s", "", "Store location")

	var name, description string
	add := &cobra.Command{
		Use:   "add <prompt>",
		Short: "Save a new prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.add(cmd.Context(), cmd, name, args[0], description)
		},
	}
	add.Flags().StringVarP(&cmder.store, "store", "s", "", "Store location")
	add.Flags().StringVarP(&name, "name", "n", "", "Prompt name")
	add.Flags().StringVarP(&description, "description", "d", "", "Prompt description")
	_ = add.MarkFlagRequired("name")

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a saved prompt",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.remove(cmd.Context(), cmd, args[0])
		},
	}
	rm.Flags().StringVarP(&cmder.store, "store", "s", "", "Store location")

	cmd.AddCommand(list, add, rm, mergecmder.NewMergeCmd(), pushcmder.NewPushCmd())

	return cmd
}

func (c *promptsCommander) open(ctx context.Context) (storage.Driver, error) {
	location, err := storepath.Resolve(c.store)
	if err != nil {
		return nil, fmt.Errorf("could not resolve store: %w", err)
	}

	driver, err := storepath.Open(ctx, location, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("could not open store %s: %w", location, err)
	}
	return driver, nil
}

func (c *promptsCommander) list(ctx context.Context, cmd *cobra.Command) error {
	driver, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	prompts, err := driver.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("could not list prompts: %w", err)
	}

	if len(prompts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved prompts.")
		return nil
	}

	ordered := make([]storage.Prompt, 0, len(prompts))
	for _, p := range prompts {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].ID < ordered[j].ID
	})

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "DESCRIPTION", "LAST USED").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, p := range ordered {
		lastUsed := "never"
		if p.LastUsed != nil {
			lastUsed = p.LastUsed.Local().Format(time.DateTime)
		}
		t.Row(p.ID, p.Name, p.Description, lastUsed)
	}

	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}

func (c *promptsCommander) add(ctx context.Context, cmd *cobra.Command, name, text, description string) error {
	driver, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	prompt := storage.Prompt{
		ID:          uuid.NewString(),
		Name:        name,
		Prompt:      text,
		Description: description,
		CreatedAt:   time.Now(),
	}
	if err := driver.PutPrompt(ctx, prompt); err != nil {
		return fmt.Errorf("could not save prompt: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved prompt %q as %s\n", name, prompt.ID)
	return nil
}

func (c *promptsCommander) remove(ctx context.Context, cmd *cobra.Command, id string) error {
	driver, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	prompt, err := driver.DeletePrompt(ctx, id)
	if err != nil {
		var notFound storage.ErrNotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("no saved prompt with ID %s", id)
		}
		return fmt.Errorf("could not delete prompt: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted prompt %q\n", prompt.Name)
	return nil
}
