// Package foundry provides the Foundry builder for EVM contracts.
package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pendergraft/contraforge/internal/chains"
	"github.com/pendergraft/contraforge/internal/chains/evm"
	"github.com/pendergraft/contraforge/internal/sandbox"
	"github.com/pendergraft/contraforge/internal/toolchain"
	"github.com/pendergraft/contraforge/internal/validation"
)

// DefaultLibsPath is used for compilation when no dependency path is configured
const DefaultLibsPath = "lib"

// Options configures a Builder
type Options struct {
	ForgePath string // defaults to "forge"
	LibsPath  string // dependency library path for test runs, relative to the working directory
}

// Builder implements chains.Builder for Foundry
type Builder struct {
	sandboxes *sandbox.Manager
	runner    toolchain.Runner
	forgePath string
	libsPath  string
	logger    *slog.Logger
}

// New creates a new Foundry builder
func New(sandboxes *sandbox.Manager, runner toolchain.Runner, opts Options, logger *slog.Logger) *Builder {
	forgePath := opts.ForgePath
	if forgePath == "" {
		forgePath = "forge"
	}
	libsPath := opts.LibsPath
	if libsPath == "" {
		libsPath = DefaultLibsPath
	}
	// forge resolves libs against --root, which is the throwaway sandbox
	if abs, err := filepath.Abs(libsPath); err == nil {
		libsPath = abs
	}
	return &Builder{
		sandboxes: sandboxes,
		runner:    runner,
		forgePath: forgePath,
		libsPath:  libsPath,
		logger:    logger,
	}
}

// Name returns the builder identifier
func (b *Builder) Name() string {
	return "foundry"
}

// DisplayName returns a human-readable name
func (b *Builder) DisplayName() string {
	return "Foundry"
}

// Chain returns the chain this builder targets
func (b *Builder) Chain() string {
	return "evm"
}

// ConfigFile returns the config file name
func (b *Builder) ConfigFile() string {
	return "foundry.toml"
}

// Compile writes the source into a fresh sandbox, runs forge build and
// reads the contract artifact. Every failure is reported in the result.
func (b *Builder) Compile(ctx context.Context, req chains.CompileRequest) *chains.CompilationResult {
	if err := validation.ValidateContractName(req.ContractName); err != nil {
		return chains.CompilationFailure(req, err.Error())
	}

	var result *chains.CompilationResult
	err := b.sandboxes.With("compile", func(dir *sandbox.Dir) error {
		result = b.compileIn(ctx, dir, req)
		return nil
	})
	if err != nil {
		return chains.CompilationFailure(req, err.Error())
	}
	return result
}

func (b *Builder) compileIn(ctx context.Context, dir *sandbox.Dir, req chains.CompileRequest) *chains.CompilationResult {
	sourcePath := dir.Join(sandbox.SourceDir, req.ContractName+".sol")
	if err := os.WriteFile(sourcePath, []byte(req.SourceCode), 0644); err != nil {
		return chains.CompilationFailure(req, fmt.Sprintf("writing source: %v", err))
	}

	cfg := newProjectConfig(req.CompilerVersion, []string{DefaultLibsPath})
	if err := writeProjectConfig(dir.Join(b.ConfigFile()), cfg); err != nil {
		return chains.CompilationFailure(req, err.Error())
	}

	res, err := b.runner.Run(ctx, toolchain.Command{
		Name: b.forgePath,
		Args: []string{"build", "--root", dir.Path, "--force"},
		Dir:  dir.Path,
	})
	if err != nil {
		return chains.CompilationFailure(req, err.Error())
	}
	if res.ExitCode != 0 {
		return chains.CompilationFailure(req, diagnostic(res))
	}

	artifactPath := dir.Join(sandbox.ArtifactDir, req.ContractName+".sol", req.ContractName+".json")
	artifact, err := readArtifact(artifactPath)
	if err != nil {
		return chains.CompilationFailure(req, err.Error())
	}

	// Interfaces and abstract contracts compile to nothing deployable
	if artifact.Bytecode.Object == "" || artifact.Bytecode.Object == "0x" {
		return chains.CompilationFailure(req, fmt.Sprintf("contract %s has no bytecode (likely an interface or abstract contract)", req.ContractName))
	}

	if evm.HasLibraryPlaceholders(artifact.Bytecode.Object) {
		return chains.CompilationFailure(req, fmt.Sprintf("contract %s links external libraries, which single-file builds cannot deploy", req.ContractName))
	}

	abi, err := chains.ParseABI(artifact.ABI)
	if err != nil {
		return chains.CompilationFailure(req, fmt.Sprintf("parsing artifact %s: %v", req.ContractName, err))
	}

	return &chains.CompilationResult{
		Success:         true,
		ABI:             abi,
		Bytecode:        artifact.Bytecode.Object,
		ContractName:    req.ContractName,
		CompilerVersion: req.CompilerVersion,
		SourceCode:      req.SourceCode,
	}
}

// Test writes the contract and its test file into a fresh sandbox and runs
// forge test. Forge exits non-zero when a test fails, so the JSON report is
// parsed regardless of the exit code.
func (b *Builder) Test(ctx context.Context, req chains.TestRequest) *chains.TestOutcome {
	if err := validation.ValidateContractName(req.ContractName); err != nil {
		return chains.TestInvocationFailure(err.Error())
	}

	var outcome *chains.TestOutcome
	err := b.sandboxes.With("test", func(dir *sandbox.Dir) error {
		outcome = b.testIn(ctx, dir, req)
		return nil
	})
	if err != nil {
		return chains.TestInvocationFailure(err.Error())
	}
	return outcome
}

func (b *Builder) testIn(ctx context.Context, dir *sandbox.Dir, req chains.TestRequest) *chains.TestOutcome {
	files := map[string]string{
		dir.Join(sandbox.SourceDir, req.ContractName+".sol"): req.SourceCode,
		dir.Join(sandbox.TestDir, req.ContractName+".t.sol"): req.TestCode,
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return chains.TestInvocationFailure(fmt.Sprintf("writing %s: %v", filepath.Base(path), err))
		}
	}

	cfg := newProjectConfig(req.CompilerVersion, []string{b.libsPath})
	cfg.Profile.Default.Test = sandbox.TestDir
	if err := writeProjectConfig(dir.Join(b.ConfigFile()), cfg); err != nil {
		return chains.TestInvocationFailure(err.Error())
	}

	res, err := b.runner.Run(ctx, toolchain.Command{
		Name: b.forgePath,
		Args: []string{"test", "--root", dir.Path, "--json"},
		Dir:  dir.Path,
	})
	if err != nil {
		return chains.TestInvocationFailure(err.Error())
	}

	outcome, err := ParseTestReport([]byte(res.Stdout))
	if err != nil {
		// Compilation errors leave stdout empty and the cause on stderr
		if res.ExitCode != 0 {
			return chains.TestInvocationFailure(diagnostic(res))
		}
		return chains.TestInvocationFailure(err.Error())
	}
	return outcome
}

// diagnostic returns the toolchain's own error text unmodified
func diagnostic(res *toolchain.Result) string {
	if strings.TrimSpace(res.Stderr) != "" {
		return res.Stderr
	}
	if strings.TrimSpace(res.Stdout) != "" {
		return res.Stdout
	}
	return fmt.Sprintf("forge exited with status %d", res.ExitCode)
}

func readArtifact(path string) (*FoundryArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw FoundryArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}
	return &raw, nil
}

// projectConfig is the foundry.toml written into every sandbox
type projectConfig struct {
	Profile struct {
		Default profileSettings `toml:"default"`
	} `toml:"profile"`
}

type profileSettings struct {
	Src           string   `toml:"src"`
	Test          string   `toml:"test,omitempty"`
	Out           string   `toml:"out"`
	Libs          []string `toml:"libs"`
	SolcVersion   string   `toml:"solc_version,omitempty"`
	Optimizer     bool     `toml:"optimizer"`
	OptimizerRuns int      `toml:"optimizer_runs"`
	ViaIR         bool     `toml:"via_ir"`
}

func newProjectConfig(solcVersion string, libs []string) *projectConfig {
	cfg := &projectConfig{}
	cfg.Profile.Default = profileSettings{
		Src:           sandbox.SourceDir,
		Out:           sandbox.ArtifactDir,
		Libs:          libs,
		SolcVersion:   validation.ShortVersion(solcVersion),
		Optimizer:     true,
		OptimizerRuns: 200,
		ViaIR:         false,
	}
	return cfg
}

func writeProjectConfig(path string, cfg *projectConfig) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding foundry.toml: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing foundry.toml: %w", err)
	}
	return nil
}

// FoundryArtifact represents the structure of a Foundry artifact JSON file
type FoundryArtifact struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         BytecodeObject  `json:"bytecode"`
	DeployedBytecode BytecodeObject  `json:"deployedBytecode"`
}

// BytecodeObject represents bytecode in a Foundry artifact
type BytecodeObject struct {
	Object    string `json:"object"`
	SourceMap string `json:"sourceMap"`
}
