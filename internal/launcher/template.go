package launcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/forgegames/platform/internal/protocol"
)

var templatePlaceholder = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// renderTemplate substitutes every {placeholder} in tmpl from ctx. Every
// placeholder present must already have a value in ctx — the manifest
// validator rejected anything outside the closed set at upload time, so a
// miss here indicates a context-building bug, not untrusted input.
func renderTemplate(tmpl string, ctx map[string]string) (string, error) {
	var missing string
	out := templatePlaceholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[1 : len(match)-1]
		v, ok := ctx[name]
		if !ok {
			missing = name
			return match
		}
		return v
	})
	if missing != "" {
		return "", protocol.NewInternal("render launch template", fmt.Errorf("no value for placeholder %q", missing))
	}
	return out, nil
}

// splitCommand tokenizes a rendered command string into an argument
// vector. Launch commands are simple space-separated tokens; no shell
// quoting is honored, matching the manifest's stated shape of a plain
// argv template rather than a shell line.
func splitCommand(rendered string) []string {
	return strings.Fields(rendered)
}
