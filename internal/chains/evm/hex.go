package evm

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Library placeholder pattern: __$<34 hex chars>$__
var libraryPlaceholder = regexp.MustCompile(`__\$[a-f0-9]{34}\$__`)

// NormalizeConstructorArgs returns ABI-encoded constructor arguments as bare
// lower-case hex, the form explorers expect. Empty input and "0x" yield "".
func NormalizeConstructorArgs(args string) (string, error) {
	args = strings.TrimSpace(args)
	args = strings.TrimPrefix(strings.TrimPrefix(args, "0x"), "0X")
	if args == "" {
		return "", nil
	}
	if len(args)%2 != 0 {
		return "", fmt.Errorf("constructor arguments have odd hex length %d", len(args))
	}
	if _, err := hex.DecodeString(args); err != nil {
		return "", fmt.Errorf("constructor arguments are not hex: %w", err)
	}
	return strings.ToLower(args), nil
}

// HasLibraryPlaceholders reports whether bytecode still references unlinked libraries
func HasLibraryPlaceholders(bytecode string) bool {
	return libraryPlaceholder.MatchString(bytecode)
}
