// Package cmd provides the command-line interface for livecanvas.
//
// This package implements the CLI commands using the Cobra framework.
//
// # Available Commands
//
//   - preview: Preview a source file with live reload and relay its output
//   - render: Print the materialized document for a source file once
//   - config: Show or validate the resolved configuration
//   - version: Show version information
//
// # Command Examples
//
//	// Preview a sketch, opening the browser
//	livecanvas preview sketch.js
//
//	// Preview without opening a browser, logging relayed output to a file
//	livecanvas preview sketch.js --no-open --console canvas.log
//
//	// Debug a template
//	livecanvas render sketch.js --url ws://127.0.0.1:9000
//
//	// Inspect configuration
//	livecanvas config show --format json
//
// # Configuration
//
// Commands read .livecanvas.yml from the working directory, LIVECANVAS_
// environment variables and flags, in increasing order of precedence.
package cmd
