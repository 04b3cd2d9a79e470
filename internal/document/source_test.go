package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/livecanvas/internal/logging"
	"github.com/conneroisu/livecanvas/internal/materialize"
	"github.com/conneroisu/livecanvas/internal/testutils"
	"github.com/conneroisu/livecanvas/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = types.ChannelAddress("ws://127.0.0.1:40123")

func newTestSource(t *testing.T, editor Editor) (*Source, *testutils.RecordingLogger) {
	t.Helper()
	logger := testutils.NewRecordingLogger()
	return NewSource(editor, materialize.New("template.html"), logger), logger
}

func TestProvideContentRendersCurrentSource(t *testing.T) {
	sourcePath := testutils.CreatePreviewProject(t, "ctx.fill()", "${url}|${tmplpath}|${code}")
	src, _ := newTestSource(t, FileEditor{})

	id := types.NewSessionID(sourcePath)
	_, err := src.Open(id, sourcePath, testAddr)
	require.NoError(t, err)

	doc, ok := src.ProvideContent(context.Background(), types.RenderRequest{ID: id})
	require.True(t, ok)
	assert.Equal(t, string(testAddr)+"|"+filepath.Dir(sourcePath)+"|ctx.fill()", doc)

	snapshot, ok := src.lastRendered(id)
	require.True(t, ok)
	assert.Equal(t, doc, snapshot)

	info, ok := src.Session(id)
	require.True(t, ok)
	assert.EqualValues(t, 1, info.Revision)
	assert.False(t, info.RenderedAt.IsZero())
}

func TestProvideContentReflectsEdits(t *testing.T) {
	sourcePath := testutils.CreatePreviewProject(t, "v1", "${code}")
	editor := NewMemoryEditor()
	editor.Set(sourcePath, "unsaved v2")
	src, _ := newTestSource(t, editor)

	id := types.NewSessionID(sourcePath)
	_, err := src.Open(id, sourcePath, testAddr)
	require.NoError(t, err)

	doc, ok := src.ProvideContent(context.Background(), types.RenderRequest{ID: id})
	require.True(t, ok)
	assert.Equal(t, "unsaved v2", doc)

	editor.Set(sourcePath, "unsaved v3")
	doc, ok = src.ProvideContent(context.Background(), types.RenderRequest{ID: id})
	require.True(t, ok)
	assert.Equal(t, "unsaved v3", doc)
}

func TestProvideContentCancelled(t *testing.T) {
	sourcePath := testutils.CreatePreviewProject(t, "x", testutils.DefaultTemplate)
	src, _ := newTestSource(t, FileEditor{})

	id := types.NewSessionID(sourcePath)
	_, err := src.Open(id, sourcePath, testAddr)
	require.NoError(t, err)

	doc, ok := src.ProvideContent(context.Background(), types.RenderRequest{ID: id, Cancelled: true})
	assert.False(t, ok)
	assert.Empty(t, doc)

	_, rendered := src.lastRendered(id)
	assert.False(t, rendered, "cancelled request must not render")
}

func TestProvideContentMissingTemplate(t *testing.T) {
	sourcePath := testutils.CreatePreviewProject(t, "x", "")
	src, logger := newTestSource(t, FileEditor{})

	id := types.NewSessionID(sourcePath)
	_, err := src.Open(id, sourcePath, testAddr)
	require.NoError(t, err)

	var doc string
	var ok bool
	assert.NotPanics(t, func() {
		doc, ok = src.ProvideContent(context.Background(), types.RenderRequest{ID: id})
	})
	assert.False(t, ok)
	assert.Empty(t, doc)
	assert.Equal(t, 1, logger.Count("Template unavailable, no content"))
	assert.Equal(t, false, logger.Entries()[len(logger.Entries())-1].Fields["keeps_previous"])
}

func TestProvideContentKeepsPriorSnapshotWhenTemplateDisappears(t *testing.T) {
	sourcePath := testutils.CreatePreviewProject(t, "x", "<p>${code}</p>")
	src, logger := newTestSource(t, FileEditor{})

	id := types.NewSessionID(sourcePath)
	_, err := src.Open(id, sourcePath, testAddr)
	require.NoError(t, err)

	_, ok := src.ProvideContent(context.Background(), types.RenderRequest{ID: id})
	require.True(t, ok)

	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(sourcePath), "template.html")))
	_, ok = src.ProvideContent(context.Background(), types.RenderRequest{ID: id})
	assert.False(t, ok)

	snapshot, ok := src.lastRendered(id)
	require.True(t, ok)
	assert.Equal(t, "<p>x</p>", snapshot, "the rendered document is kept, not the raw source")

	entries := logger.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, "Template unavailable, no content", last.Message)
	assert.Equal(t, true, last.Fields["keeps_previous"])
}

func TestProvideContentSourceUnavailable(t *testing.T) {
	sourcePath := testutils.CreatePreviewProject(t, "x", "${code}")
	src, logger := newTestSource(t, NewMemoryEditor())

	id := types.NewSessionID(sourcePath)
	_, err := src.Open(id, sourcePath, testAddr)
	require.NoError(t, err)

	_, ok := src.ProvideContent(context.Background(), types.RenderRequest{ID: id})
	assert.False(t, ok)
	assert.Equal(t, 1, logger.Count("Current source unavailable"))
}

func TestProvideContentUnknownSession(t *testing.T) {
	src, _ := newTestSource(t, FileEditor{})
	_, ok := src.ProvideContent(context.Background(), types.RenderRequest{ID: "livecanvas://preview/none"})
	assert.False(t, ok)
}

func TestOpenKeepsChannelAddress(t *testing.T) {
	sourcePath := testutils.CreatePreviewProject(t, "x", "${code}")
	src, _ := newTestSource(t, FileEditor{})
	id := types.NewSessionID(sourcePath)

	first, err := src.Open(id, sourcePath, testAddr)
	require.NoError(t, err)
	second, err := src.Open(id, sourcePath, "ws://127.0.0.1:1")
	require.NoError(t, err)

	assert.Equal(t, testAddr, first.Address)
	assert.Equal(t, testAddr, second.Address)
	assert.Len(t, src.Sessions(), 1)
}

func TestOpenValidation(t *testing.T) {
	src, _ := newTestSource(t, FileEditor{})

	_, err := src.Open("", "/tmp/x.js", testAddr)
	assert.Error(t, err)
	_, err = src.Open("livecanvas://preview/x.js", "", testAddr)
	assert.Error(t, err)
}

func TestChangedRaisesInvalidation(t *testing.T) {
	sourcePath := testutils.CreatePreviewProject(t, "x", "${code}")
	src, _ := newTestSource(t, FileEditor{})
	id := types.NewSessionID(sourcePath)
	_, err := src.Open(id, sourcePath, testAddr)
	require.NoError(t, err)

	events, unsubscribe := src.Subscribe()
	defer unsubscribe()

	src.Changed(id)

	select {
	case got := <-events:
		assert.Equal(t, id, got)
	case <-time.After(time.Second):
		t.Fatal("expected invalidation")
	}

	// Unknown sessions are ignored.
	src.Changed("livecanvas://preview/other")
	select {
	case got := <-events:
		t.Fatalf("unexpected invalidation for %s", got)
	default:
	}
}

func TestChangedNeverBlocksOnSlowSubscriber(t *testing.T) {
	sourcePath := testutils.CreatePreviewProject(t, "x", "${code}")
	src, _ := newTestSource(t, FileEditor{})
	id := types.NewSessionID(sourcePath)
	_, err := src.Open(id, sourcePath, testAddr)
	require.NoError(t, err)

	_, unsubscribe := src.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			src.Changed(id)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Changed blocked on an unread subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	src, _ := newTestSource(t, FileEditor{})
	events, unsubscribe := src.Subscribe()

	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)
}

func TestCloseSession(t *testing.T) {
	sourcePath := testutils.CreatePreviewProject(t, "x", "${code}")
	src, _ := newTestSource(t, FileEditor{})
	id := types.NewSessionID(sourcePath)
	_, err := src.Open(id, sourcePath, testAddr)
	require.NoError(t, err)

	src.Close(id)
	_, ok := src.Session(id)
	assert.False(t, ok)
	_, ok = src.ProvideContent(context.Background(), types.RenderRequest{ID: id})
	assert.False(t, ok)
}

func TestNewSourceWithSlogLogger(t *testing.T) {
	src := NewSource(FileEditor{}, materialize.New("template.html"), logging.NewNop())
	assert.Empty(t, src.Sessions())
}
