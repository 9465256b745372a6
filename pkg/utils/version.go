// Package utils holds small helpers shared across docqa packages.
package utils

// Build metadata, overridden at link time with -X.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// BuildInfo is the build metadata in a serializable form.
type BuildInfo struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	Buildtime string `json:"buildtime"`
}

// Info reports the metadata this binary was linked with.
func Info() BuildInfo {
	return BuildInfo{Version: Version, Sha: Sha, Buildtime: Buildtime}
}
