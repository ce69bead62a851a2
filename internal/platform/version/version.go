package version

// Version is the application version, overridable at build time via
// -ldflags "-X github.com/chun1617/kirman/internal/platform/version.Version=...".
var Version = "dev"
