// Package profile defines the language profiles used by the drivers.
package profile

import (
	"strings"
	"time"

	"codedrill/internal/judge/sandbox/result"
)

const (
	DefaultCompileTimeout = 30 * time.Second
	DefaultSetupTimeout   = 5 * time.Second
	DefaultProbeTimeout   = 5 * time.Second
)

// LanguageSpec defines how a driver prepares, compiles and tests one language.
// Command templates accept {src}, {test}, {bin} and {module} placeholders.
type LanguageSpec struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Driver     result.DriverKind `yaml:"driver"`
	SourceFile string            `yaml:"sourceFile"`
	TestFile   string            `yaml:"testFile"`
	BinaryFile string            `yaml:"binaryFile"`
	ModuleName string            `yaml:"moduleName"`

	SetupCmdTpl   string   `yaml:"setupCmd"`
	CompileCmdTpl string   `yaml:"compileCmd"`
	TestCmdTpl    string   `yaml:"testCmd"`
	VersionCmd    string   `yaml:"versionCmd"`
	Env           []string `yaml:"env"`

	CompileTimeout time.Duration `yaml:"compileTimeout"`
	SetupTimeout   time.Duration `yaml:"setupTimeout"`
}

// Normalized returns a copy with defaults applied and the id lower-cased.
func (l LanguageSpec) Normalized() LanguageSpec {
	l.ID = strings.ToLower(strings.TrimSpace(l.ID))
	if l.CompileTimeout <= 0 {
		l.CompileTimeout = DefaultCompileTimeout
	}
	if l.SetupTimeout <= 0 {
		l.SetupTimeout = DefaultSetupTimeout
	}
	return l
}

// MaxVerifyDuration is the longest one verification can run for this
// language. phase bounds compile and test (zero uses CompileTimeout) and
// waitDelay is the engine's pipe drain allowance after each command.
func (l LanguageSpec) MaxVerifyDuration(phase, waitDelay time.Duration) time.Duration {
	l = l.Normalized()
	if phase <= 0 {
		phase = l.CompileTimeout
	}
	total := phase + waitDelay
	if l.Driver == result.KindBuildTest {
		if l.SetupCmdTpl != "" {
			total += l.SetupTimeout + waitDelay
		}
		total += phase + waitDelay
	}
	return total
}

// GoSpec is the reference build-and-test profile.
func GoSpec() LanguageSpec {
	return LanguageSpec{
		ID:            "go",
		Name:          "Go",
		Driver:        result.KindBuildTest,
		SourceFile:    "main.go",
		TestFile:      "main_test.go",
		BinaryFile:    "task",
		ModuleName:    "task",
		SetupCmdTpl:   "go mod init {module}",
		CompileCmdTpl: "go build -o {bin} {src}",
		TestCmdTpl:    "go test -v -json .",
		VersionCmd:    "go version",
		Env:           []string{"GOWORK=off", "GOFLAGS=-mod=mod", "CGO_ENABLED=0"},
	}.Normalized()
}

// SoliditySpec is the reference compile-only profile.
func SoliditySpec() LanguageSpec {
	return LanguageSpec{
		ID:            "solidity",
		Name:          "Solidity",
		Driver:        result.KindCompileOnly,
		SourceFile:    "contract.sol",
		CompileCmdTpl: "solc --abi --bin --optimize {src}",
		VersionCmd:    "solc --version",
	}.Normalized()
}
