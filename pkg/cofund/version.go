// Package cofund holds release metadata for the cofund module.
package cofund

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/mesh-intelligence/cofund/pkg/cofund.Version=...".
var Version = "0.2.0"

// ModulePath is the Go module path.
const ModulePath = "github.com/mesh-intelligence/cofund"
