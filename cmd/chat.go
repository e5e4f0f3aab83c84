package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/product-analyzer/internal/llm"
	"github.com/sells-group/product-analyzer/pkg/ollama"
)

// modelLister is the part of ollama.Client used by --list-models.
type modelLister interface {
	ListModels(ctx context.Context) ([]ollama.Model, error)
}

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Send one prompt to the configured backend and stream the reply",
	Long:  "Sends a single prompt, taken from the arguments or stdin, and streams the reply to stdout.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		modelName, _ := cmd.Flags().GetString("model")
		system, _ := cmd.Flags().GetString("system")
		noStream, _ := cmd.Flags().GetBool("no-stream")
		list, _ := cmd.Flags().GetBool("list-models")

		if list {
			client := ollama.NewClient(cfg.Ollama.Key, ollama.WithBaseURL(cfg.Ollama.BaseURL))
			return listModels(ctx, cmd.OutOrStdout(), client, cfg.LLM.Model)
		}

		prompt, err := readPrompt(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		if err := cfg.Validate("chat"); err != nil {
			return err
		}
		chatter, err := llm.New(ctx, cfg, modelName)
		if err != nil {
			return eris.Wrap(err, "init llm")
		}

		out := cmd.OutOrStdout()
		var onChunk func(string)
		if !noStream {
			onChunk = func(s string) { _, _ = io.WriteString(out, s) }
		}

		reply, err := chatter.Chat(ctx, chatRequest(system, prompt), onChunk)
		if err != nil {
			if llm.IsUnauthorized(err) {
				return eris.Wrapf(err, "chat: %s rejected the api key", chatter.Provider())
			}
			return eris.Wrap(err, "chat")
		}
		if noStream {
			_, _ = io.WriteString(out, reply)
		}
		_, _ = fmt.Fprintln(out)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("model", "", "override llm.model")
	chatCmd.Flags().String("system", "", "optional system prompt")
	chatCmd.Flags().Bool("no-stream", false, "print the reply only once it is complete")
	chatCmd.Flags().Bool("list-models", false, "list the Ollama cloud models and exit")
	rootCmd.AddCommand(chatCmd)
}

// readPrompt joins args, or reads stdin when there are none.
func readPrompt(args []string, stdin io.Reader) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", eris.Wrap(err, "chat: read stdin")
		}
		prompt = strings.TrimSpace(string(b))
	}
	if prompt == "" {
		return "", eris.New("chat: empty prompt")
	}
	return prompt, nil
}

func chatRequest(system, prompt string) llm.Request {
	var msgs []llm.Message
	if system != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: prompt})
	return llm.Request{Messages: msgs}
}

// listModels prints the models the key can use, marking current. When the
// lookup fails the built-in cloud model list is printed instead.
func listModels(ctx context.Context, out io.Writer, lister modelLister, current string) error {
	if current == "" {
		current = llm.DefaultModel
	}
	var names []string
	models, err := lister.ListModels(ctx)
	if err != nil {
		zap.L().Warn("chat: list models failed, showing known models", zap.Error(err))
		names = llm.KnownModels
	} else {
		for _, m := range models {
			names = append(names, m.Name)
		}
	}
	for _, name := range names {
		mark := " "
		if name == current {
			mark = "*"
		}
		if _, err := fmt.Fprintf(out, "%s %s\n", mark, name); err != nil {
			return eris.Wrap(err, "chat: write models")
		}
	}
	return nil
}
