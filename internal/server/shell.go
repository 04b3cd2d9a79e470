package server

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"

	"github.com/a-h/templ"
	"github.com/conneroisu/livecanvas/internal/document"
)

// TitlePrefix starts the title of every preview page.
const TitlePrefix = "Canvas Preview: "

func documentPath(name string) string {
	return "/document/" + url.PathEscape(name)
}

func previewPath(name string) string {
	return "/preview/" + url.PathEscape(name)
}

// PageTitle returns the title shown for a previewed source file.
func PageTitle(sourcePath string) string {
	return TitlePrefix + filepath.Base(sourcePath)
}

const shellScript = `<script>
(function () {
  var frame = document.getElementById("preview");
  var session = frame.dataset.session;
  var base = frame.dataset.src;
  var rev = 0;
  function connect() {
    var scheme = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(scheme + location.host + "/events");
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.type === "invalidate" && msg.session === session) {
        rev++;
        frame.src = base + "?rev=" + rev;
      }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>`

// shellPage is the page hosting one session. A 204 answer to the iframe
// navigation leaves the current document displayed.
func shellPage(session document.SessionInfo) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		name := session.ID.Name()
		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>html, body { margin: 0; height: 100%%; } iframe { border: 0; width: 100%%; height: 100%%; }</style>
</head>
<body>
<iframe id="preview" src="%s" data-src="%s" data-session="%s"></iframe>
%s
</body>
</html>
`,
			templ.EscapeString(PageTitle(session.SourcePath)),
			templ.EscapeString(documentPath(name)),
			templ.EscapeString(documentPath(name)),
			templ.EscapeString(string(session.ID)),
			shellScript,
		)
		return err
	})
}

// sessionList links every open session when more than one is active.
func sessionList(sessions []document.SessionInfo) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>livecanvas</title>\n</head>\n<body>\n<ul>\n"); err != nil {
			return err
		}
		for _, session := range sessions {
			if _, err := fmt.Fprintf(w, "<li><a href=\"%s\">%s</a></li>\n",
				templ.EscapeString(previewPath(session.ID.Name())),
				templ.EscapeString(PageTitle(session.SourcePath)),
			); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</ul>\n</body>\n</html>\n")
		return err
	})
}
