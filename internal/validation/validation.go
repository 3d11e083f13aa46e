// Package validation provides input validation for contraforge requests.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Contract names become file names inside sandboxes, so only
// Solidity identifiers are accepted.
var contractNameRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

const maxContractNameLength = 128

// ErrInvalidContractName is returned for names that are not Solidity identifiers
var ErrInvalidContractName = errors.New("invalid contract name")

// ValidateContractName validates a contract name
func ValidateContractName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidContractName)
	}
	if len(name) > maxContractNameLength {
		return fmt.Errorf("%w: name too long (max %d chars)", ErrInvalidContractName, maxContractNameLength)
	}
	if !contractNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must be a Solidity identifier", ErrInvalidContractName, name)
	}
	return nil
}

// ValidateSourceCode checks that source is present and within maxBytes (0 = unbounded)
func ValidateSourceCode(source string, maxBytes int) error {
	if strings.TrimSpace(source) == "" {
		return errors.New("source code cannot be empty")
	}
	if maxBytes > 0 && len(source) > maxBytes {
		return fmt.Errorf("source code too large (max %d bytes)", maxBytes)
	}
	return nil
}

// ValidateCompilerVersion validates a solc version such as 0.8.20,
// v0.8.20 or 0.8.20+commit.a1b79de6
func ValidateCompilerVersion(v string) error {
	normalized := NormalizeVersion(v)
	if normalized == "" {
		return errors.New("compiler version cannot be empty")
	}

	// semver library expects version to start with 'v'
	versionWithV := "v" + normalized
	if !semver.IsValid(versionWithV) {
		return errors.New("invalid compiler version: must be in format X.Y.Z")
	}
	if semver.Prerelease(versionWithV) != "" {
		return errors.New("invalid compiler version: prerelease compilers are not supported")
	}

	// Require major.minor.patch; semver accepts "0.8" as shorthand
	mainPart := strings.SplitN(normalized, "+", 2)[0]
	if strings.Count(mainPart, ".") < 2 {
		return errors.New("invalid compiler version: must be in format X.Y.Z (major.minor.patch)")
	}
	return nil
}

// NormalizeVersion normalizes a version string (strips leading 'v')
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// ShortVersion drops build metadata: 0.8.20+commit.a1b79de6 -> 0.8.20
func ShortVersion(v string) string {
	return strings.SplitN(NormalizeVersion(v), "+", 2)[0]
}

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	// Check hex characters
	for _, c := range addr[2:] {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return errors.New("invalid address: contains non-hex characters")
		}
	}
	return nil
}
