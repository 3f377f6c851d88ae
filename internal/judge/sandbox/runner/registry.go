package runner

import (
	"sort"
	"strings"

	"codedrill/internal/judge/sandbox/engine"
	"codedrill/internal/judge/sandbox/observer"
	"codedrill/internal/judge/sandbox/profile"
	"codedrill/internal/judge/sandbox/result"
	appErr "codedrill/pkg/errors"
)

// Registry resolves language ids to drivers.
type Registry struct {
	drivers map[string]Driver
}

// NewRegistry builds one driver per language profile.
func NewRegistry(eng engine.Engine, langs []profile.LanguageSpec, metrics observer.MetricsRecorder) (*Registry, error) {
	if eng == nil {
		return nil, appErr.ValidationError("engine", "required")
	}
	r := &Registry{drivers: make(map[string]Driver, len(langs))}
	for _, lang := range langs {
		lang = lang.Normalized()
		if lang.ID == "" {
			return nil, appErr.ValidationError("language.id", "required")
		}
		if _, exists := r.drivers[lang.ID]; exists {
			return nil, appErr.ValidationError("language.id", "duplicate language "+lang.ID)
		}
		if lang.SourceFile == "" || lang.CompileCmdTpl == "" {
			return nil, appErr.ValidationError("language."+lang.ID, "sourceFile and compileCmd are required")
		}
		switch lang.Driver {
		case result.KindBuildTest:
			if lang.TestFile == "" || lang.TestCmdTpl == "" {
				return nil, appErr.ValidationError("language."+lang.ID, "testFile and testCmd are required for build_test")
			}
			r.Register(NewGoDriver(lang, eng, metrics))
		case result.KindCompileOnly:
			r.Register(NewSolidityDriver(lang, eng, metrics))
		default:
			return nil, appErr.ValidationError("language."+lang.ID+".driver", "unknown driver kind "+string(lang.Driver))
		}
	}
	return r, nil
}

// Register adds or replaces the driver for its language id.
func (r *Registry) Register(d Driver) {
	r.drivers[d.Language().ID] = d
}

// Get returns the driver for a language id, case-insensitively.
func (r *Registry) Get(languageID string) (Driver, error) {
	d, ok := r.drivers[strings.ToLower(strings.TrimSpace(languageID))]
	if !ok {
		return nil, appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", languageID)
	}
	return d, nil
}

// Languages lists the registered profiles sorted by id.
func (r *Registry) Languages() []profile.LanguageSpec {
	out := make([]profile.LanguageSpec, 0, len(r.drivers))
	for _, d := range r.drivers {
		out = append(out, d.Language())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
