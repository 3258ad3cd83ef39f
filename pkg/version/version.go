package version

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/newtron-network/newtrace/pkg/version.Version=v0.3.0 \
//	  -X github.com/newtron-network/newtrace/pkg/version.GitCommit=abc1234 \
//	  -X github.com/newtron-network/newtrace/pkg/version.BuildDate=2026-01-01T00:00:00Z"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a formatted version string for display.
func Info() string {
	return Version + " (" + GitCommit + ") built " + BuildDate
}

// Line returns the one-line banner printed by "<tool> version".
func Line(tool string) string {
	if Version == "dev" {
		return tool + " dev build (version is set with -ldflags)"
	}
	return tool + " " + Version + " (" + GitCommit + ")"
}
