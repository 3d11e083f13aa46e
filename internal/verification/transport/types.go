// Package transport provides HTTP request/response types for the verification domain.
package transport

import (
	"time"

	"github.com/pendergraft/contraforge/internal/storage"
	"github.com/pendergraft/contraforge/internal/verification/domain"
)

// VerifyRequest is the HTTP request body for verifying a contract.
type VerifyRequest struct {
	ContractAddress string `json:"contractAddress"`
	SourceCode      string `json:"sourceCode"`
	ContractName    string `json:"contractName"`
	CompilerVersion string `json:"compilerVersion,omitempty"`
	ConstructorArgs string `json:"constructorArgs,omitempty"`
	Network         string `json:"network,omitempty"`
}

// ToDomain converts VerifyRequest to domain.VerifyRequest.
func (r VerifyRequest) ToDomain() domain.VerifyRequest {
	return domain.VerifyRequest{
		ContractAddress: r.ContractAddress,
		SourceCode:      r.SourceCode,
		ContractName:    r.ContractName,
		CompilerVersion: r.CompilerVersion,
		ConstructorArgs: r.ConstructorArgs,
		Network:         r.Network,
	}
}

// VerificationRecord is one stored verification session.
type VerificationRecord struct {
	ID              string    `json:"id"`
	GUID            string    `json:"guid,omitempty"`
	Network         string    `json:"network"`
	ChainID         int64     `json:"chainId"`
	Address         string    `json:"address"`
	ContractName    string    `json:"contractName"`
	CompilerVersion string    `json:"compilerVersion,omitempty"`
	State           string    `json:"state"`
	Message         string    `json:"message,omitempty"`
	Attempts        int       `json:"attempts"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toRecord(v storage.Verification) VerificationRecord {
	return VerificationRecord{
		ID:              v.ID,
		GUID:            v.GUID,
		Network:         v.Network,
		ChainID:         v.ChainID,
		Address:         v.Address,
		ContractName:    v.ContractName,
		CompilerVersion: v.CompilerVersion,
		State:           v.State,
		Message:         v.Message,
		Attempts:        v.Attempts,
		CreatedAt:       v.CreatedAt,
	}
}

// ListVerificationsResponse is the response for listing verifications.
type ListVerificationsResponse struct {
	Data       []VerificationRecord `json:"data"`
	HasMore    bool                 `json:"hasMore"`
	NextCursor string               `json:"nextCursor,omitempty"`
}

// NetworksResponse lists the networks the server can verify on.
type NetworksResponse struct {
	Networks map[string]int `json:"networks"`
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
