// Package version holds build information injected with -ldflags "-X".
package version

import "fmt"

// Build information. Overridden at link time, e.g.
// -X github.com/bissquit/stockwatch/internal/version.Version=1.2.0
var (
	Version   = "0.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// UserAgent identifies stockwatch in outgoing HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("stockwatch/%s (+%s)", Version, GitCommit)
}
