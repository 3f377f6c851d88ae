package controller

import (
	"context"
	"time"

	"codedrill/pkg/utils/logger"
	"codedrill/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dependencyPingTimeout = 2 * time.Second

// ToolchainProber reports which language toolchains are reachable.
type ToolchainProber interface {
	Probe(ctx context.Context) map[string]bool
}

// Pinger is a backing service that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController exposes toolchain and backing service health.
type HealthController struct {
	prober       ToolchainProber
	dependencies map[string]Pinger
}

// NewHealthController creates a new HealthController.
// dependencies maps a display name such as "database" to its client.
func NewHealthController(prober ToolchainProber, dependencies map[string]Pinger) *HealthController {
	if dependencies == nil {
		dependencies = map[string]Pinger{}
	}
	return &HealthController{prober: prober, dependencies: dependencies}
}

// Toolchains probes every configured toolchain. It never gates submissions.
func (h *HealthController) Toolchains(c *gin.Context) {
	status := h.prober.Probe(c.Request.Context())
	response.Success(c, ToolchainsResponse{Healthy: allTrue(status), Toolchains: status})
}

// Dependencies pings every configured backing service.
func (h *HealthController) Dependencies(c *gin.Context) {
	ctx := c.Request.Context()
	status := make(map[string]bool, len(h.dependencies))
	for name, dep := range h.dependencies {
		pingCtx, cancel := context.WithTimeout(ctx, dependencyPingTimeout)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn(ctx, "dependency ping failed", zap.String("dependency", name), zap.Error(err))
		}
		status[name] = err == nil
	}
	response.Success(c, DependenciesResponse{Healthy: allTrue(status), Dependencies: status})
}

func allTrue(status map[string]bool) bool {
	for _, ok := range status {
		if !ok {
			return false
		}
	}
	return true
}

// ToolchainsResponse lists reachability per language id.
type ToolchainsResponse struct {
	Healthy    bool            `json:"healthy"`
	Toolchains map[string]bool `json:"toolchains"`
}

// DependenciesResponse lists reachability per backing service.
type DependenciesResponse struct {
	Healthy      bool            `json:"healthy"`
	Dependencies map[string]bool `json:"dependencies"`
}
