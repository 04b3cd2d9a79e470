//go:build property

package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestPreviewErrorProperties validates classification and formatting properties
func TestPreviewErrorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	// Property: the type survives any depth of fmt.Errorf wrapping
	properties.Property("type survives wrapping", prop.ForAll(
		func(depth int, message string) bool {
			var err error = NewResourceUnavailable(CodeTemplateMissing, message, nil)
			for i := 0; i < depth; i++ {
				err = fmt.Errorf("layer %d: %w", i, err)
			}
			return IsResourceUnavailable(err) && !IsDisplayFailure(err)
		},
		gen.IntRange(0, 10),
		gen.AlphaString(),
	))

	// Property: the message and cause always appear in Error()
	properties.Property("error text carries message and cause", prop.ForAll(
		func(message, cause string) bool {
			err := NewDisplayFailure(message, errors.New(cause))
			text := err.Error()
			return strings.Contains(text, message) &&
				strings.HasSuffix(text, ": "+cause) &&
				strings.HasPrefix(text, "["+CodeDisplayRejected+"]")
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	// Property: Fields has one value per key and carries every context entry
	properties.Property("fields are key value pairs", prop.ForAll(
		func(keys []string) bool {
			err := NewMalformedMessage("unhandled message type")
			for i, k := range keys {
				err = err.WithContext(k, i)
			}
			fields := err.Fields()
			if len(fields)%2 != 0 {
				return false
			}
			seen := make(map[string]bool)
			for i := 0; i < len(fields); i += 2 {
				key, ok := fields[i].(string)
				if !ok {
					return false
				}
				seen[key] = true
			}
			for _, k := range keys {
				if !seen[k] {
					return false
				}
			}
			return seen["error_type"] && seen["error_code"]
		},
		gen.SliceOfN(5, gen.Identifier()),
	))

	properties.TestingRun(t)
}
