//go:build property

package materialize

import (
	"strings"
	"testing"

	"github.com/conneroisu/livecanvas/internal/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestMaterializeProperties validates substitution properties over random input
func TestMaterializeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("same inputs produce the same document", prop.ForAll(
		func(prefix, code, port, base string) bool {
			tmpl := prefix + TokenCode + TokenURL + TokenBasePath
			v := Values{Code: code, URL: types.ChannelAddress("ws://127.0.0.1:" + port), BasePath: base}
			return Materialize(tmpl, v) == Materialize(tmpl, v)
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.NumString(),
		gen.AnyString(),
	))

	properties.Property("template without placeholders is unchanged", prop.ForAll(
		func(tmpl, code string) bool {
			v := Values{Code: code, URL: "ws://127.0.0.1:1", BasePath: "/b"}
			return Materialize(tmpl, v) == tmpl
		},
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.Property("each placeholder once yields inputs in order", prop.ForAll(
		func(code, base string) bool {
			tmpl := "[" + TokenCode + "|" + TokenURL + "|" + TokenBasePath + "]"
			v := Values{Code: code, URL: "ws://127.0.0.1:7", BasePath: base}
			want := "[" + code + "|ws://127.0.0.1:7|" + base + "]"
			return Materialize(tmpl, v) == want
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("output never loses source text", prop.ForAll(
		func(code string) bool {
			return strings.Contains(Materialize("<"+TokenCode+">", Values{Code: code}), code)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
