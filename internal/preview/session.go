// Package preview owns the lifecycle of a live preview: it starts the message
// bridge, opens the virtual document, wires edits through the change notifier
// to the document source and serves the result to a display.
package preview

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/conneroisu/livecanvas/internal/bridge"
	"github.com/conneroisu/livecanvas/internal/config"
	"github.com/conneroisu/livecanvas/internal/document"
	"github.com/conneroisu/livecanvas/internal/errors"
	"github.com/conneroisu/livecanvas/internal/logging"
	"github.com/conneroisu/livecanvas/internal/materialize"
	"github.com/conneroisu/livecanvas/internal/server"
	"github.com/conneroisu/livecanvas/internal/types"
	"github.com/conneroisu/livecanvas/internal/validation"
	"github.com/conneroisu/livecanvas/internal/watcher"
	"github.com/pkg/browser"
)

const shutdownTimeout = 5 * time.Second

// Opener displays a URL to the user.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error {
	return f(url)
}

// BrowserOpener opens URLs in the system browser.
var BrowserOpener Opener = OpenerFunc(browser.OpenURL)

// Options configures a Session. Only Config and SourcePath are required.
type Options struct {
	Config     *config.Config
	SourcePath string

	// Sink receives relayed preview output. Defaults to stdout.
	Sink bridge.Sink
	// Editor supplies the current source text. Defaults to the file on disk.
	Editor document.Editor
	// Opener displays the preview. Defaults to BrowserOpener.
	Opener Opener
	Logger logging.Logger
}

// Session is one running preview of a source file.
type Session struct {
	id           types.SessionID
	sourcePath   string
	logger       logging.Logger
	opener       Opener
	materializer *materialize.Materializer

	bridge    *bridge.Bridge
	debouncer *watcher.Debouncer
	watcher   *watcher.FileWatcher
	source    *document.Source
	display   *server.DisplayServer

	mutex     sync.Mutex
	started   bool
	closed    bool
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// New assembles a preview session for opts.SourcePath without starting it.
func New(opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, errors.NewConfigError("preview session needs a configuration", nil)
	}
	sourcePath, err := validation.ValidateSourcePath(opts.SourcePath)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = bridge.NewConsoleSink(os.Stdout)
	}
	editor := opts.Editor
	if editor == nil {
		editor = document.FileEditor{}
	}
	opener := opts.Opener
	if opener == nil {
		opener = BrowserOpener
	}

	fileWatcher, err := watcher.NewFileWatcher(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	id := types.NewSessionID(sourcePath)
	logger = logger.With("session", string(id))

	materializer := materialize.New(opts.Config.Preview.Template)
	source := document.NewSource(editor, materializer, logger)
	messageBridge := bridge.New(opts.Config.Bridge, sink, logger)

	return &Session{
		id:           id,
		sourcePath:   sourcePath,
		logger:       logger.WithComponent("preview"),
		opener:       opener,
		materializer: materializer,
		bridge:       messageBridge,
		debouncer:    watcher.NewDebouncer(opts.Config.Preview.Debounce),
		watcher:      fileWatcher,
		source:       source,
		display:      server.New(opts.Config.Display, source, messageBridge, logger),
	}, nil
}

// Start brings the preview up. The bridge is listening before the document
// is opened, so every rendered document embeds a live channel address.
func (s *Session) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.started || s.closed {
		s.mutex.Unlock()
		return errors.NewNetworkError("SESSION_STATE", "preview session can only be started once", nil)
	}
	s.started = true
	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mutex.Unlock()

	if err := s.start(ctx, watchCtx); err != nil {
		_ = s.Close()
		return err
	}

	s.logger.Info(ctx, "Preview started",
		"source", s.sourcePath,
		"template", s.materializer.TemplatePath(s.sourcePath),
		"channel", s.bridge.Address(),
		"url", s.URL())
	return nil
}

func (s *Session) start(ctx, watchCtx context.Context) error {
	if err := s.bridge.Listen(ctx); err != nil {
		return fmt.Errorf("starting message bridge: %w", err)
	}
	if err := s.bridge.WaitReady(ctx); err != nil {
		return fmt.Errorf("waiting for message bridge: %w", err)
	}

	addr := s.bridge.Address()
	if err := validation.ValidateChannelAddress(addr); err != nil {
		return err
	}
	if _, err := s.source.Open(s.id, s.sourcePath, addr); err != nil {
		return fmt.Errorf("opening preview document: %w", err)
	}

	s.debouncer.OnChange(s.source.Changed)
	s.watcher.AddHandler(func(event watcher.EditEvent) {
		s.logger.Debug(watchCtx, "Edit observed", "path", event.Path, "type", event.Type.String())
		s.debouncer.Notify(event.Session)
	})
	// Template edits refresh the preview like source edits do.
	if err := s.watcher.Bind(s.id, s.sourcePath, s.materializer.TemplatePath(s.sourcePath)); err != nil {
		return fmt.Errorf("watching source: %w", err)
	}
	if err := s.watcher.Start(watchCtx); err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}

	if err := s.display.Start(ctx); err != nil {
		return fmt.Errorf("starting display server: %w", err)
	}
	// Documents framed by the display connect back from its origin.
	s.bridge.AllowOrigin(s.display.OriginHost())
	return nil
}

// Show asks the opener to display the preview. A refusal is returned as a
// DisplayFailure and is not retried.
func (s *Session) Show(ctx context.Context) error {
	url := s.URL()
	if url == "" {
		return errors.NewDisplayFailure("preview is not running", nil)
	}
	if err := validation.ValidateURL(url); err != nil {
		return errors.NewDisplayFailure("refusing to open preview URL", err).WithContext("url", url)
	}

	if err := s.opener.Open(url); err != nil {
		derr := errors.NewDisplayFailure("display rejected the preview", err).WithContext("url", url)
		s.logger.Warn(ctx, derr, "Unable to show preview", derr.Fields()...)
		return derr
	}

	s.logger.Info(ctx, "Preview shown", "title", server.PageTitle(s.sourcePath), "url", url)
	return nil
}

// Edited records an edit that did not come from the file watcher, such as a
// change to an in-memory buffer.
func (s *Session) Edited() {
	s.debouncer.Notify(s.id)
}

// ID returns the session identity.
func (s *Session) ID() types.SessionID {
	return s.id
}

// SourcePath returns the absolute path of the previewed file.
func (s *Session) SourcePath() string {
	return s.sourcePath
}

// Address returns the channel address embedded in rendered documents.
func (s *Session) Address() types.ChannelAddress {
	return s.bridge.Address()
}

// URL returns the display URL, empty until started.
func (s *Session) URL() string {
	return s.display.PreviewURL(s.id)
}

// Source returns the document source serving this session.
func (s *Session) Source() *document.Source {
	return s.source
}

// Bridge returns the message bridge of this session.
func (s *Session) Bridge() *bridge.Bridge {
	return s.bridge
}

// Close tears the preview down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mutex.Lock()
		s.closed = true
		cancel := s.cancel
		s.mutex.Unlock()

		s.debouncer.Stop()
		var errs []error
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping file watcher: %w", err))
		}
		if cancel != nil {
			cancel()
		}

		ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := s.display.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := s.bridge.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing message bridge: %w", err))
		}
		s.source.Close(s.id)

		s.closeErr = stderrors.Join(errs...)
		s.logger.Info(ctx, "Preview stopped")
	})
	return s.closeErr
}
