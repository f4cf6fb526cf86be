package mergecmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/cmd/promptgate/storepath"
	"github.com/papercomputeco/promptgate/pkg/storage"
)

const mergeLongDesc string = `Merge saved prompts from one or more source stores into a target.

Prompts are matched by ID: a prompt whose ID already exists in the target
is skipped, everything else is copied. Sources may be any store location
(SQLite file, JSON directory, redis:// URL).

Examples:
  promptgate prompts merge ~/old-ui/saved_prompts.json
  promptgate prompts merge --store /tmp/merged.db ~/alice/promptgate.db ~/bob/promptgate.db`

const mergeShortDesc string = "Merge prompt stores"

type mergeCommander struct {
	store string
}

func NewMergeCmd() *cobra.Command {
	cmder := &mergeCommander{}

	cmd := &cobra.Command{
		Use:   "merge [sources...]",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.store, "store", "s", "", "Target store location")

	return cmd
}

func (c *mergeCommander) run(ctx context.Context, cmd *cobra.Command, sources []string) error {
	targetPath, err := storepath.Resolve(c.store)
	if err != nil {
		return fmt.Errorf("could not resolve target store: %w", err)
	}

	target, err := storepath.Open(ctx, targetPath, zap.NewNop())
	if err != nil {
		return fmt.Errorf("could not open target store %s: %w", targetPath, err)
	}
	defer target.Close()

	var totalNew, totalDuped int

	for _, srcPath := range sources {
		srcNew, srcDuped, err := mergeFrom(ctx, target, srcPath)
		if err != nil {
			return err
		}

		totalNew += srcNew
		totalDuped += srcDuped

		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d new, %d already existed\n", srcPath, srcNew, srcDuped)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merged %d new prompts from %d sources (%d already existed) into %s\n",
		totalNew, len(sources), totalDuped, targetPath)

	return nil
}

func mergeFrom(ctx context.Context, target storage.PromptStore, srcPath string) (int, int, error) {
	source, err := storepath.Open(ctx, srcPath, zap.NewNop())
	if err != nil {
		return 0, 0, fmt.Errorf("could not open source store %s: %w", srcPath, err)
	}
	defer source.Close()

	prompts, err := source.ListPrompts(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("could not list prompts from %s: %w", srcPath, err)
	}

	var srcNew, srcDuped int
	for _, p := range prompts {
		_, err := target.GetPrompt(ctx, p.ID)
		if err == nil {
			srcDuped++
			continue
		}

		var notFound storage.ErrNotFound
		if !errors.As(err, &notFound) {
			return 0, 0, fmt.Errorf("could not look up prompt %s: %w", p.ID, err)
		}

		if err := target.PutPrompt(ctx, p); err != nil {
			return 0, 0, fmt.Errorf("could not put prompt %s: %w", p.ID, err)
		}
		srcNew++
	}

	return srcNew, srcDuped, nil
}
