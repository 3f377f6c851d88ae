// Package spec defines the process execution specification handed to the engine.
package spec

import "time"

// RunSpec is the unified execution specification for one external command.
// It is the only description of host process work the drivers may produce.
type RunSpec struct {
	// Cmd is the argv; Cmd[0] is resolved through PATH.
	Cmd     []string
	WorkDir string
	// Env entries are appended to the host environment.
	Env     []string
	Timeout time.Duration
	// Label names the invocation in logs and metrics, e.g. "go-build".
	Label string
}
