// Package validation checks values that leave the process: URLs handed to the
// system browser, channel addresses embedded in rendered documents and the
// source paths a preview is started for.
package validation

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/livecanvas/internal/errors"
	"github.com/conneroisu/livecanvas/internal/types"
)

// Characters that could be interpreted by the platform opener's shell.
var dangerousURLChars = []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'", "\\", "\n", "\r", " "}

// ValidateURL validates a display URL before it is passed to the system
// browser. Only http and https URLs with a host are accepted.
func ValidateURL(rawURL string) error {
	for _, char := range dangerousURLChars {
		if strings.Contains(rawURL, char) {
			return errors.NewValidationError(errors.CodeInvalidURL,
				fmt.Sprintf("URL contains dangerous character %q", char)).
				WithContext("url", rawURL)
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.NewValidationError(errors.CodeInvalidURL, "invalid URL: "+err.Error()).
			WithContext("url", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.NewValidationError(errors.CodeInvalidURL,
			fmt.Sprintf("invalid URL scheme %q (only http/https allowed)", parsed.Scheme)).
			WithContext("url", rawURL)
	}
	if parsed.Host == "" {
		return errors.NewValidationError(errors.CodeInvalidURL, "URL must have a valid hostname").
			WithContext("url", rawURL)
	}

	return nil
}

// ValidateChannelAddress checks that addr is a websocket endpoint a rendered
// document can connect to.
func ValidateChannelAddress(addr types.ChannelAddress) error {
	parsed, err := url.Parse(string(addr))
	if err != nil {
		return errors.NewValidationError(errors.CodeInvalidURL, "invalid channel address: "+err.Error())
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return errors.NewValidationError(errors.CodeInvalidURL,
			fmt.Sprintf("channel address scheme %q is not ws or wss", parsed.Scheme)).
			WithContext("address", string(addr))
	}
	if parsed.Hostname() == "" || parsed.Port() == "" || parsed.Port() == "0" {
		return errors.NewValidationError(errors.CodeInvalidURL, "channel address needs a bound host and port").
			WithContext("address", string(addr))
	}
	return nil
}

// ValidateSourcePath checks that path names an existing regular file and
// returns its absolute form.
func ValidateSourcePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.NewValidationError(errors.CodeInvalidSource, "source path cannot be empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.NewValidationError(errors.CodeInvalidSource, "cannot resolve source path: "+err.Error()).
			WithContext("path", path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.NewResourceUnavailable(errors.CodeSourceUnavailable, "source file not readable", err).
			WithContext("path", abs)
	}
	if info.IsDir() {
		return "", errors.NewValidationError(errors.CodeInvalidSource, "source path is a directory").
			WithContext("path", abs)
	}

	return abs, nil
}
