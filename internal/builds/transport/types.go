// Package transport provides HTTP request/response types for the builds domain.
package transport

import (
	"encoding/json"

	"github.com/pendergraft/contraforge/internal/builds/domain"
)

// CompileRequest is the HTTP request body for compiling a contract.
type CompileRequest struct {
	SourceCode      string `json:"sourceCode"`
	ContractName    string `json:"contractName"`
	CompilerVersion string `json:"compilerVersion,omitempty"`
}

// ToDomain converts CompileRequest to domain.CompileRequest.
func (r CompileRequest) ToDomain() domain.CompileRequest {
	return domain.CompileRequest{
		SourceCode:      r.SourceCode,
		ContractName:    r.ContractName,
		CompilerVersion: r.CompilerVersion,
	}
}

// TestRequest is the HTTP request body for running contract tests.
type TestRequest struct {
	SourceCode      string `json:"sourceCode"`
	ContractName    string `json:"contractName"`
	TestCode        string `json:"testCode"`
	CompilerVersion string `json:"compilerVersion,omitempty"`
}

// ToDomain converts TestRequest to domain.TestRequest.
func (r TestRequest) ToDomain() domain.TestRequest {
	return domain.TestRequest{
		SourceCode:      r.SourceCode,
		ContractName:    r.ContractName,
		TestCode:        r.TestCode,
		CompilerVersion: r.CompilerVersion,
	}
}

// ComplianceRequest is the HTTP request body for scoring an ABI.
// ABI may be a bare ABI array or a compiler artifact object.
type ComplianceRequest struct {
	ABI json.RawMessage `json:"abi"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
