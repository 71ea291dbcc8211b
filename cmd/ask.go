package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"d3fend-graphx/internal/config"
	"d3fend-graphx/internal/formatter"
	"d3fend-graphx/internal/rag"
	"d3fend-graphx/internal/table"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with the RAG engine",
	Long: `Ask a natural-language question. The RAG engine retrieves the most similar
knowledge-graph entries and asks a language model to answer from them.

Examples:
  d3fend-graphx ask "Which D3FEND techniques counter credential dumping?"
  d3fend-graphx ask --rag-backend openai --top-k 20 "What is CWE-89?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndMerge(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, ok := newAsker(cfg, logger).(*rag.Client)
	if !ok {
		return errors.New("no RAG engine configured (set rag.command in .d3fend-graphx.yaml)")
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		client.Model = model
	}

	ans, err := client.Ask(context.Background(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		s, err := formatter.ToJSON(ans)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
		return nil
	}

	fmt.Fprintln(out, ans.Answer)
	if len(ans.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		return table.ToTable(ans.Rows()).Write(out)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().String("rag-backend", "ollama", "Language model provider (ollama, openai)")
	askCmd.Flags().Int("top-k", 10, "Number of knowledge-graph entries to retrieve")
	askCmd.Flags().String("model", "", "Override the local model used by the ollama backend")
	askCmd.Flags().Bool("json", false, "Print the answer and sources as JSON")
}
