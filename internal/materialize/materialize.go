// Package materialize turns previewed source text into a renderable document
// by substituting placeholders in a template that lives beside the source.
//
// The template may contain three tokens:
//
//	${code}      the current source text
//	${url}       the bridge channel address the rendered surface connects to
//	${tmplpath}  the directory holding the source and template
//
// Every occurrence of a token is replaced. Substitution happens in a single
// pass, so token-shaped text inside the inserted source is left alone.
// Unknown tokens are kept verbatim.
package materialize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/livecanvas/internal/errors"
	"github.com/conneroisu/livecanvas/internal/types"
)

const (
	TokenCode     = "${code}"
	TokenURL      = "${url}"
	TokenBasePath = "${tmplpath}"
)

// Values are the substitutions applied to a template.
type Values struct {
	Code     string
	URL      types.ChannelAddress
	BasePath string
}

// Materialize substitutes v into tmpl. It is pure and total.
func Materialize(tmpl string, v Values) string {
	r := strings.NewReplacer(
		TokenCode, v.Code,
		TokenURL, string(v.URL),
		TokenBasePath, v.BasePath,
	)
	return r.Replace(tmpl)
}

// Load reads the template named name from dir. A missing or unreadable file
// is reported as a ResourceUnavailable error.
func Load(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewResourceUnavailable(
			errors.CodeTemplateMissing,
			fmt.Sprintf("template %s unavailable", path),
			err,
		).WithContext("template_path", path)
	}
	return string(data), nil
}

// Materializer renders documents for source files using a per-target template.
type Materializer struct {
	templateName string
}

// New creates a Materializer reading templateName beside each source file.
func New(templateName string) *Materializer {
	return &Materializer{templateName: templateName}
}

// TemplateName returns the file name looked up beside each source.
func (m *Materializer) TemplateName() string {
	return m.templateName
}

// TemplatePath returns the template location used for sourcePath.
func (m *Materializer) TemplatePath(sourcePath string) string {
	return filepath.Join(filepath.Dir(sourcePath), m.templateName)
}

// Render reads the template adjacent to sourcePath and materializes code and
// addr into it. The template is read on every call so edits to it show up on
// the next render.
func (m *Materializer) Render(sourcePath, code string, addr types.ChannelAddress) (string, error) {
	base := filepath.Dir(sourcePath)
	tmpl, err := Load(base, m.templateName)
	if err != nil {
		return "", err
	}
	return Materialize(tmpl, Values{Code: code, URL: addr, BasePath: base}), nil
}
