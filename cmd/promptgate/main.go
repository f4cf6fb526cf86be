package main

import (
	"os"

	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/promptgate/cmd/promptgate/chat"
	promptscmder "github.com/papercomputeco/promptgate/cmd/promptgate/prompts"
	servecmder "github.com/papercomputeco/promptgate/cmd/promptgate/serve"
)

const rootLongDesc string = `promptgate is a gateway between chat clients and a local Ollama engine.

It merges each chat request with persisted generation settings and a
library of saved system prompts, forwards it to Ollama and streams the
reply back as server-sent events.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "promptgate",
		Short:        "Ollama chat gateway with saved system prompts",
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		servecmder.NewServeCmd(),
		chatcmder.NewChatCmd(),
		promptscmder.NewPromptsCmd(),
	)

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
