package cmd

import (
	"fmt"
	"io"

	"github.com/conneroisu/livecanvas/internal/config"
	"github.com/conneroisu/livecanvas/internal/document"
	"github.com/conneroisu/livecanvas/internal/errors"
	"github.com/conneroisu/livecanvas/internal/materialize"
	"github.com/conneroisu/livecanvas/internal/types"
	"github.com/conneroisu/livecanvas/internal/validation"
	"github.com/spf13/cobra"
)

var (
	renderURL      string
	renderTemplate string
)

var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Print the materialized document for a source file",
	Long: `Materialize a source file into its template once and print the result.

Useful for debugging templates: the output is exactly what the preview
would display, with ${url} replaced by the address given with --url.

Examples:
  livecanvas render sketch.js --url ws://127.0.0.1:9000
  livecanvas render sketch.js --url ws://127.0.0.1:9000 --template demo.html > out.html`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderURL, "url", "", "Message channel address embedded as ${url}")
	renderCmd.Flags().StringVar(&renderTemplate, "template", config.DefaultTemplate, "Template file name looked up beside the source")
	renderCmd.MarkFlagRequired("url")
}

func runRender(cmd *cobra.Command, args []string) error {
	return renderDocument(cmd.OutOrStdout(), args[0], renderTemplate, types.ChannelAddress(renderURL))
}

func renderDocument(out io.Writer, path, templateName string, addr types.ChannelAddress) error {
	if err := validation.ValidateChannelAddress(addr); err != nil {
		return err
	}
	sourcePath, err := validation.ValidateSourcePath(path)
	if err != nil {
		return err
	}

	code, err := document.FileEditor{}.Text(sourcePath)
	if err != nil {
		return err
	}
	m := materialize.New(templateName)
	doc, err := m.Render(sourcePath, code, addr)
	if errors.IsResourceUnavailable(err) {
		return fmt.Errorf("nothing to render, create %s: %w", m.TemplatePath(sourcePath), err)
	}
	if err != nil {
		return err
	}

	_, err = io.WriteString(out, doc)
	if err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}
