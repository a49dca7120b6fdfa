// Package version records the build identity of the tern CLI. The variables
// are plain strings so a release build can override them with -ldflags.
package version

import (
	"strings"

	"github.com/fatih/color"
)

var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var segmentColors = []*color.Color{
	color.New(color.FgCyan, color.Bold),
	color.New(color.FgGreen, color.Bold),
	color.New(color.FgMagenta, color.Bold),
}

// Styled renders Version with each dotted segment of the release core in its
// own color; a pre-release suffix stays unstyled. Honors color.NoColor.
func Styled() string {
	core, suffix, _ := strings.Cut(Version, "-")
	segments := strings.Split(core, ".")
	for i, seg := range segments {
		segments[i] = segmentColors[i%len(segmentColors)].Sprint(seg)
	}
	out := strings.Join(segments, ".")
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}
