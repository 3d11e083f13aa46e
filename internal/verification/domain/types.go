// Package domain contains the business logic for block-explorer source verification.
package domain

import "fmt"

// State is the lifecycle position of a verification session
type State string

// Session states. Verified, Failed and TimedOut are terminal.
const (
	StateCreated    State = "created"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateVerified   State = "verified"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
)

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == StateVerified || s == StateFailed || s == StateTimedOut
}

// allowed lists the legal transitions out of each state
var allowed = map[State][]State{
	StateCreated:    {StateSubmitting},
	StateSubmitting: {StatePolling, StateFailed},
	StatePolling:    {StateVerified, StateFailed, StateTimedOut},
}

// Networks
const (
	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet"
)

// Messages reported in sessions
const (
	MessageVerified      = "Contract verified successfully"
	MessageTimeout       = "Verification timeout"
	messageSubmitFailed  = "Verification failed"
	messageRequestFailed = "Verification request failed"
)

// VerifyRequest is the request to verify deployed source on a block explorer.
type VerifyRequest struct {
	ContractAddress string `json:"contractAddress"`
	SourceCode      string `json:"sourceCode"`
	ContractName    string `json:"contractName"`
	CompilerVersion string `json:"compilerVersion,omitempty"`
	ConstructorArgs string `json:"constructorArgs,omitempty"`
	Network         string `json:"network,omitempty"` // "testnet" (default) or "mainnet"
}

// Session tracks one verification from submission to a terminal state.
type Session struct {
	GUID         string `json:"guid,omitempty"`
	Network      string `json:"network"`
	ChainID      int    `json:"chainId"`
	Address      string `json:"address"`
	ContractName string `json:"contractName"`
	State        State  `json:"state"`
	Message      string `json:"message,omitempty"`
	Attempts     int    `json:"attempts"`
}

// Success reports whether the contract was verified
func (s *Session) Success() bool {
	return s.State == StateVerified
}

func (s *Session) transition(to State, msg string) error {
	for _, next := range allowed[s.State] {
		if next == to {
			s.State = to
			s.Message = msg
			return nil
		}
	}
	return fmt.Errorf("illegal verification transition %s -> %s", s.State, to)
}
