package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agile-athletes/lrps/internal/extract"
	"github.com/agile-athletes/lrps/internal/helpers"
	"github.com/agile-athletes/lrps/internal/llm"
)

func suggestCMD(a *app) *cobra.Command {
	var validate, raw bool
	var opts renderOptions
	suggest := &cobra.Command{
		Use:   "suggest [ISSUE]",
		Short: "Ask the model for an attention tree for a planning issue (reads stdin without ISSUE)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var issue string
			if len(args) == 1 {
				issue = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				issue = string(b)
			}
			issue = helpers.PlainText(issue)
			if issue == "" {
				return fmt.Errorf("empty issue")
			}

			var maker llm.PromptMaker = llm.SuggestionPromptMaker{}
			model := a.cfg.LLM.BulkyModel
			if validate {
				maker = llm.ValidatingPromptMaker{}
				model = a.cfg.LLM.SimpleModel
			}
			prompt, err := maker.MakePrompt(issue)
			if err != nil {
				return err
			}
			client := llm.NewClient(llm.Options{
				APIKey:      a.cfg.LLM.APIKey,
				BaseURL:     a.cfg.LLM.BaseURL,
				Model:       model,
				Temperature: a.cfg.LLM.Temperature,
				MaxTokens:   a.cfg.LLM.MaxTokens,
				Timeout:     a.cfg.LLM.Timeout,
				Logger:      a.logger.Named("llm"),
			})
			reply, err := client.Ask(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			if validate || raw {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
				return err
			}
			if _, err := extract.Extract(reply); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), reply.Content)
				return err
			}
			return renderInput(strings.NewReader(reply.Content), cmd.OutOrStdout(), opts, a.logger)
		},
	}
	suggest.Flags().BoolVar(&validate, "validate", false, "check the wording of the issue instead of suggesting attentions")
	suggest.Flags().BoolVar(&raw, "raw", false, "print the model reply unchanged")
	suggest.Flags().BoolVar(&opts.html, "html", false, "emit sanitized HTML instead of Markdown")
	suggest.Flags().BoolVar(&opts.pretty, "pretty", false, "render Markdown for the terminal")
	return suggest
}
