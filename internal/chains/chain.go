// Package chains provides the builder interfaces and the shared result types
// produced by compiling and testing contracts for a blockchain ecosystem.
package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Builder compiles and tests contract sources with a specific build tool
type Builder interface {
	// Metadata
	Name() string        // "foundry"
	DisplayName() string // "Foundry"
	Chain() string       // "evm"
	ConfigFile() string  // "foundry.toml"

	// Compile builds a single-file contract. Failures are reported in the
	// result, never as a panic or error.
	Compile(ctx context.Context, req CompileRequest) *CompilationResult

	// Test builds the contract together with a test file and runs the suite.
	Test(ctx context.Context, req TestRequest) *TestOutcome
}

// CompileRequest is the input of a single compilation
type CompileRequest struct {
	SourceCode      string
	ContractName    string
	CompilerVersion string
}

// TestRequest is the input of a single test run
type TestRequest struct {
	SourceCode      string
	ContractName    string
	TestCode        string
	CompilerVersion string
}

// CompilationResult is the normalized output of a compilation.
//
// When Success is true Bytecode is non-empty and ABI is a well-formed list
// (possibly empty). When Success is false ABI is empty, Bytecode is "" and
// Error carries the toolchain diagnostic unmodified.
type CompilationResult struct {
	Success         bool       `json:"success"`
	ABI             []ABIEntry `json:"abi"`
	Bytecode        string     `json:"bytecode"`
	ContractName    string     `json:"contractName"`
	CompilerVersion string     `json:"compilerVersion"`
	SourceCode      string     `json:"sourceCode"`
	Error           string     `json:"error,omitempty"`
}

// CompilationFailure builds a failed result for the request
func CompilationFailure(req CompileRequest, msg string) *CompilationResult {
	if msg == "" {
		msg = "Compilation failed"
	}
	return &CompilationResult{
		Success:         false,
		ABI:             []ABIEntry{},
		ContractName:    req.ContractName,
		CompilerVersion: req.CompilerVersion,
		SourceCode:      req.SourceCode,
		Error:           msg,
	}
}

// Test statuses
const (
	TestPassed = "passed"
	TestFailed = "failed"
)

// TestRecord is the outcome of a single test function
type TestRecord struct {
	Name     string        `json:"name"`
	File     string        `json:"file,omitempty"`
	Status   string        `json:"status"` // "passed", "failed"
	Duration time.Duration `json:"duration"`
	Reason   string        `json:"reason,omitempty"`
}

// TestOutcome aggregates the records of a test run.
// Passed + Failed == Total == len(Results) always holds.
type TestOutcome struct {
	Success bool         `json:"success"`
	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Results []TestRecord `json:"results"`
	Error   string       `json:"error,omitempty"`
}

// Add appends a record and updates the counters
func (o *TestOutcome) Add(r TestRecord) {
	o.Results = append(o.Results, r)
	o.Total++
	if r.Status == TestPassed {
		o.Passed++
	} else {
		o.Failed++
	}
}

// TestInvocationFailure is returned when the test suite could not run at all,
// as opposed to a run in which some tests failed.
func TestInvocationFailure(msg string) *TestOutcome {
	if msg == "" {
		msg = "Test execution failed"
	}
	return &TestOutcome{
		Success: false,
		Results: []TestRecord{},
		Error:   msg,
	}
}

// ABI entry kinds
const (
	KindFunction    = "function"
	KindEvent       = "event"
	KindConstructor = "constructor"
	KindFallback    = "fallback"
	KindReceive     = "receive"
	KindError       = "error"
)

// ABIEntry describes one function, event, constructor or error of a contract
type ABIEntry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name,omitempty"`
	Inputs          []ABIParam `json:"inputs,omitempty"`
	Outputs         []ABIParam `json:"outputs,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
	Anonymous       bool       `json:"anonymous,omitempty"`
}

// ABIParam is a typed parameter of an ABI entry
type ABIParam struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	InternalType string     `json:"internalType,omitempty"`
	Indexed      bool       `json:"indexed,omitempty"`
	Components   []ABIParam `json:"components,omitempty"`
}

// ParseABI decodes a JSON ABI array.
// Entries without a type default to "function", as solc did historically.
func ParseABI(raw json.RawMessage) ([]ABIEntry, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []ABIEntry{}, nil
	}

	var entries []ABIEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing ABI: %w", err)
	}
	for i := range entries {
		if entries[i].Type == "" {
			entries[i].Type = KindFunction
		}
	}
	if entries == nil {
		entries = []ABIEntry{}
	}
	return entries, nil
}

// ConstructorInputs returns the constructor parameters, if the ABI declares one
func ConstructorInputs(abi []ABIEntry) []ABIParam {
	for _, e := range abi {
		if e.Type == KindConstructor {
			return e.Inputs
		}
	}
	return nil
}
