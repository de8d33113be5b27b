// Package version holds the build version, set with
// -ldflags "-X github.com/maxvaer/wafpierce/pkg/version.Version=1.2.3".
package version

// Version is the released version, or "dev" for local builds.
var Version = "dev"
