//go:build tools

package tools

// Tool dependencies pinned in go.mod. The server applies the embedded
// migrations itself; the goose CLI is for creating and inspecting them.
// Run `go mod tidy` after adding/removing tools here.

import (
	_ "github.com/pressly/goose/v3/cmd/goose"
)
