// Package workspace manages the ephemeral directories a verification runs in.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appErr "codedrill/pkg/errors"
	"codedrill/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPrefix = "codedrill_"

// Workspace is a fresh directory owned by exactly one verification call.
type Workspace struct {
	ID  string
	Dir string
}

// Path returns the absolute path of a file name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// WriteFile writes content to a file directly inside the workspace.
func (w *Workspace) WriteFile(name, content string) error {
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return appErr.ValidationError("file_name", "must be a plain file name")
	}
	if err := os.WriteFile(w.Path(name), []byte(content), 0644); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "write %s failed", name)
	}
	return nil
}

// Provider is the acquire/release contract drivers rely on.
type Provider interface {
	Acquire(ctx context.Context) (*Workspace, error)
	Release(ctx context.Context, ws *Workspace) error
}

// Manager creates workspaces below a root directory.
type Manager struct {
	root   string
	prefix string
}

// NewManager creates a workspace manager. An empty root uses the OS temp dir.
func NewManager(root string) *Manager {
	if root == "" {
		root = os.TempDir()
	}
	return &Manager{root: root, prefix: defaultPrefix}
}

// Root returns the directory workspaces are created in.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a new, empty, uniquely named directory.
// Failures are infrastructure errors and are not retried.
func (m *Manager) Acquire(ctx context.Context) (*Workspace, error) {
	if err := os.MkdirAll(m.root, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.JudgeSystemError, "create workspace root failed")
	}
	id := uuid.NewString()
	dir := filepath.Join(m.root, m.prefix+id)
	// Mkdir, not MkdirAll: an existing directory must never be reused.
	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, appErr.Wrapf(err, appErr.JudgeSystemError, "create workspace failed")
	}
	logger.Debug(ctx, "workspace acquired", zap.String("dir", dir))
	return &Workspace{ID: id, Dir: dir}, nil
}

// Release removes the workspace and everything in it.
func (m *Manager) Release(ctx context.Context, ws *Workspace) error {
	if ws == nil || ws.Dir == "" {
		return nil
	}
	rel, err := filepath.Rel(m.root, ws.Dir)
	if err != nil || strings.HasPrefix(rel, "..") || rel == "." {
		return appErr.Newf(appErr.JudgeSystemError, "workspace %s is outside %s", ws.Dir, m.root)
	}
	if err := os.RemoveAll(ws.Dir); err != nil {
		logger.Warn(ctx, "release workspace failed", zap.String("dir", ws.Dir), zap.Error(err))
		return appErr.Wrapf(err, appErr.JudgeSystemError, "remove workspace failed")
	}
	return nil
}

var _ Provider = (*Manager)(nil)

func (w *Workspace) String() string {
	return fmt.Sprintf("workspace(%s)", w.Dir)
}
