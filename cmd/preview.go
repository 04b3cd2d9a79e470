package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/livecanvas/internal/bridge"
	"github.com/conneroisu/livecanvas/internal/config"
	"github.com/conneroisu/livecanvas/internal/errors"
	"github.com/conneroisu/livecanvas/internal/logging"
	"github.com/conneroisu/livecanvas/internal/preview"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var previewCmd = &cobra.Command{
	Use:     "preview <file>",
	Aliases: []string{"p"},
	Short:   "Preview a source file with live reload",
	Long: `Preview a source file in the browser and re-render it on every save.

The preview page is built from the template next to the file. Output sent by
the preview over its message channel is printed to stdout, or to the file
given with --console. Press Ctrl+C to stop.

Examples:
  livecanvas preview sketch.js                     # Preview with template.html
  livecanvas preview sketch.js --template demo.html
  livecanvas preview sketch.js --no-open --port 8080
  livecanvas preview sketch.js --console canvas.log`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().String("template", config.DefaultTemplate, "Template file name looked up beside the source")
	previewCmd.Flags().Duration("debounce", config.DefaultDebounce, "Quiet interval between an edit and the re-render")
	previewCmd.Flags().String("host", config.DefaultDisplayHost, "Host the display server binds to")
	previewCmd.Flags().IntP("port", "p", 0, "Port the display server binds to (0 picks a free port)")
	previewCmd.Flags().Bool("no-open", false, "Don't open the browser automatically")
	previewCmd.Flags().String("console", "", "File receiving relayed preview output (default stdout)")

	viper.BindPFlag("preview.template", previewCmd.Flags().Lookup("template"))
	viper.BindPFlag("preview.debounce", previewCmd.Flags().Lookup("debounce"))
	viper.BindPFlag("display.host", previewCmd.Flags().Lookup("host"))
	viper.BindPFlag("display.port", previewCmd.Flags().Lookup("port"))
	viper.BindPFlag("display.no-open", previewCmd.Flags().Lookup("no-open"))
	viper.BindPFlag("console.output", previewCmd.Flags().Lookup("console"))
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.TargetFiles = args

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return servePreview(ctx, cmd.ErrOrStderr(), cfg, args[0], logger, preview.BrowserOpener)
}

// servePreview runs a preview of sourcePath until ctx is done. Status lines go
// to status; relayed preview output goes to the configured console.
func servePreview(
	ctx context.Context,
	status io.Writer,
	cfg *config.Config,
	sourcePath string,
	logger logging.Logger,
	opener preview.Opener,
) error {
	console, closeConsole, err := openConsole(cfg.Console.Output)
	if err != nil {
		return err
	}
	defer closeConsole()

	session, err := preview.New(preview.Options{
		Config:     cfg,
		SourcePath: sourcePath,
		Sink:       bridge.NewConsoleSink(console),
		Opener:     opener,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create preview: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Warn(context.Background(), closeErr, "Error during preview shutdown")
		}
	}()

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start preview: %w", err)
	}

	fmt.Fprintf(status, "Previewing %s at %s\n", session.SourcePath(), session.URL())
	fmt.Fprintf(status, "Message channel: %s\n", session.Address())

	if cfg.Display.Open {
		if err := session.Show(ctx); err != nil {
			if !errors.IsDisplayFailure(err) {
				return fmt.Errorf("failed to show preview: %w", err)
			}
			// The preview keeps running; the user can open the URL by hand.
			fmt.Fprintf(status, "Unable to open the preview: %v\n", err)
			fmt.Fprintf(status, "Open %s manually.\n", session.URL())
		}
	}

	<-ctx.Done()
	fmt.Fprintln(status, "Shutting down preview...")
	return nil
}

// openConsole resolves the relayed console destination. Empty or "-" means
// stdout.
func openConsole(output string) (io.Writer, func(), error) {
	if output == "" || output == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open console output %s: %w", output, err)
	}
	return f, func() { _ = f.Close() }, nil
}
