package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agile-athletes/lrps/internal/attention"
	"github.com/agile-athletes/lrps/internal/extract"
	"github.com/agile-athletes/lrps/internal/llm"
)

type renderOptions struct {
	html     bool
	pretty   bool
	children string
}

func renderCMD(a *app) *cobra.Command {
	var opts renderOptions
	render := &cobra.Command{
		Use:   "render [FILE]",
		Short: "Render an attention list (JSON or a model reply with a ```json block) as Markdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return renderInput(in, cmd.OutOrStdout(), opts, a.logger)
		},
	}
	render.Flags().BoolVar(&opts.html, "html", false, "emit sanitized HTML instead of Markdown")
	render.Flags().BoolVar(&opts.pretty, "pretty", false, "render Markdown for the terminal")
	render.Flags().StringVar(&opts.children, "children", "", "print the children of the named attention as JSON")
	return render
}

// renderInput accepts a bare JSON document, one wrapped in a single fence,
// or free text holding a fenced JSON block.
func renderInput(r io.Reader, w io.Writer, opts renderOptions, logger *zap.Logger) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	conv, err := decodeInput(raw, logger)
	if err != nil {
		return err
	}

	switch {
	case opts.children != "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(conv.ChildrenByName(opts.children))
	case opts.html:
		html, err := conv.ToHTML()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, html)
		return err
	case opts.pretty:
		out, err := prettyMarkdown(conv.ToMarkdown())
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		_, err := fmt.Fprintln(w, conv.ToMarkdown())
		return err
	}
}

func decodeInput(raw []byte, logger *zap.Logger) (*attention.Converter, error) {
	trimmed := []byte(llm.StripJSONFence(string(raw)))
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var doc any
		if err := json.Unmarshal(trimmed, &doc); err == nil {
			if obj, ok := doc.(map[string]any); ok {
				if _, ok := obj["attentions"]; ok {
					return attention.NewConverter(obj, attention.WithLogger(logger)), nil
				}
			}
			// bare lists and single attentions are accepted like pub/sub payloads
			return attention.NewConverterFromItems(attention.ItemsFromPayload(doc), attention.WithLogger(logger)), nil
		}
	}
	data, err := extract.ExtractText(string(raw))
	if err != nil {
		return nil, err
	}
	return attention.NewConverter(data, attention.WithLogger(logger)), nil
}

func prettyMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
