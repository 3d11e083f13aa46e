// Package evm provides the EVM chain module for Ethereum and compatible chains.
package evm

import (
	"fmt"

	"github.com/pendergraft/contraforge/internal/chains"
)

// Chain holds the builders available for EVM-compatible blockchains
type Chain struct {
	builders []chains.Builder
}

// NewChain creates a new EVM chain module. The first builder is the default.
func NewChain(builders ...chains.Builder) *Chain {
	return &Chain{builders: builders}
}

// Name returns the chain identifier
func (c *Chain) Name() string {
	return "evm"
}

// DisplayName returns a human-readable name
func (c *Chain) DisplayName() string {
	return "Ethereum/EVM"
}

// Builders returns all available builders for this chain
func (c *Chain) Builders() []chains.Builder {
	return c.builders
}

// Builder returns the builder with the given name, or the default when name is empty
func (c *Chain) Builder(name string) (chains.Builder, error) {
	if len(c.builders) == 0 {
		return nil, fmt.Errorf("no EVM builder registered")
	}
	if name == "" {
		return c.builders[0], nil
	}
	for _, b := range c.builders {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("unknown EVM builder %q", name)
}
