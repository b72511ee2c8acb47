// Package version carries build metadata for the fpverify binary.
package version

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/newtron-network/fpverify/pkg/version.Version=v0.3.0 \
//	  -X github.com/newtron-network/fpverify/pkg/version.GitCommit=abc1234 \
//	  -X github.com/newtron-network/fpverify/pkg/version.BuildDate=2026-10-01T00:00:00Z"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// IsDev reports whether the binary was built without version ldflags.
func IsDev() bool {
	return Version == "dev"
}

// Info returns a formatted version string for display.
func Info() string {
	if IsDev() {
		return "dev build (use 'make build' for version info)"
	}
	return Version + " (" + GitCommit + ") built " + BuildDate
}
