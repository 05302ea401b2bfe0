package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/agile-athletes/lrps/internal/helpers"
	"github.com/agile-athletes/lrps/internal/runtime"
	"github.com/agile-athletes/lrps/internal/workflow"
)

func workflowCMD(a *app) *cobra.Command {
	wf := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect and edit the prompts stored in n8n workflows",
	}
	client := func() *workflow.Client {
		w := a.cfg.Workflow
		return workflow.NewClient(w.BaseURL, w.APIKey, w.Timeout, a.logger.Named("workflow"))
	}
	backuper := func() *workflow.Backuper {
		return &workflow.Backuper{Store: client(), Dir: a.cfg.Workflow.BackupDir, IDs: a.cfg.Workflow.IDs, Logger: a.logger.Named("backup")}
	}

	var out, format string
	get := &cobra.Command{
		Use:   "get ID",
		Short: "Print a workflow as JSON or YAML, or write it to --out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out != "" {
				return workflow.WriteFile(out, doc)
			}
			return writeDocument(cmd.OutOrStdout(), doc, format)
		},
	}
	get.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	get.Flags().StringVar(&format, "format", "json", "output format: json or yaml")

	var schedule string
	backup := &cobra.Command{
		Use:   "backup [ID...]",
		Short: "Snapshot workflows to workflow_<id>_backup.json (default: workflow.ids)",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := backuper()
			if len(args) > 0 {
				b.IDs = args
			}
			if len(b.IDs) == 0 {
				return fmt.Errorf("no workflow ids given and workflow.ids is empty")
			}
			if schedule == "" {
				return b.BackupAll(cmd.Context())
			}
			next, err := b.NextRun(schedule)
			if err != nil {
				return err
			}
			a.logger.Sugar().Infof("backing up %v on %q, next run %s", b.IDs, schedule, next.Format("2006-01-02 15:04"))
			ctx, cancel := runtime.SignalContext(cmd.Context(), "backup", a.logger)
			defer cancel()
			if err := b.Run(ctx, schedule); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	backup.Flags().StringVar(&schedule, "schedule", "", "cron expression; keep running and back up on every tick")

	var from string
	restore := &cobra.Command{
		Use:   "restore ID",
		Short: "Push a backup file back to n8n",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := backuper().Restore(cmd.Context(), args[0], from)
			return err
		},
	}
	restore.Flags().StringVar(&from, "file", "", "backup file (default workflow_<id>_backup.json in workflow.backup_dir)")

	prompt := &cobra.Command{
		Use:   "prompt ID",
		Short: "Print the prompt of the configured node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text, ok := workflow.Prompt(doc, a.cfg.Workflow.PromptNode)
			if !ok {
				return fmt.Errorf("workflow %s has no node %q", args[0], a.cfg.Workflow.PromptNode)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}

	var text, textFile string
	var activate, skipBackup bool
	setPrompt := &cobra.Command{
		Use:   "set-prompt ID",
		Short: "Replace the prompt of the configured node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if textFile != "" {
				b, err := os.ReadFile(textFile)
				if err != nil {
					return err
				}
				text = string(b)
			}
			if text == "" {
				return fmt.Errorf("--text or --file required")
			}
			current, err := client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if old, ok := workflow.Prompt(current, a.cfg.Workflow.PromptNode); ok && !helpers.Changed(old, text) {
				a.logger.Info("prompt unchanged, nothing to update", zap.String("id", args[0]))
				return nil
			}
			if !skipBackup {
				if _, err := backuper().Backup(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("backup before update: %w", err)
				}
			}
			_, err = client().UpdatePrompt(cmd.Context(), args[0], a.cfg.Workflow.PromptNode, text, activate)
			return err
		},
	}
	setPrompt.Flags().StringVar(&text, "text", "", "new prompt")
	setPrompt.Flags().StringVar(&textFile, "file", "", "read the new prompt from a file")
	setPrompt.Flags().BoolVar(&activate, "activate", false, "activate the workflow afterwards")
	setPrompt.Flags().BoolVar(&skipBackup, "no-backup", false, "skip the snapshot taken before updating")

	activateCmd := &cobra.Command{
		Use:   "activate ID",
		Short: "Activate a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := client().Activate(cmd.Context(), args[0])
			return err
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := client().Delete(cmd.Context(), args[0])
			return err
		},
	}

	wf.AddCommand(get, backup, restore, prompt, setPrompt, activateCmd, deleteCmd)
	return wf
}

func writeDocument(w io.Writer, doc workflow.Workflow, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
