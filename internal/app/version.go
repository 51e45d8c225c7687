package app

import (
	"fmt"
	"io"
	"runtime"
)

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionString returns a one-line build description,
// e.g. "gomxbeacon v1.2.0 (a1b2c3d, built 2024-05-01T10:00:00Z, go1.25.0 linux/amd64)"
func VersionString() string {
	return fmt.Sprintf("gomxbeacon %s (%s, built %s, %s %s/%s)",
		Version, GitCommit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// ShowVersion writes version information and the decoded frame layout to w
func ShowVersion(w io.Writer) {
	fmt.Fprintln(w, VersionString())
	fmt.Fprintln(w, "GOMX-3 beacon 0 decoder: eps, com, obc, adcs, adsb")
}
