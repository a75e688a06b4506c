// Package shared provides common utility functions used across multiple
// packages in the skeditor codebase.
package shared

import (
	"fmt"
	"os"
	"strings"
)

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	return fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err)
}

// ExpandCommand substitutes {key} placeholders in a command template.
// Values are inserted shell-quoted; unknown placeholders are left as-is.
func ExpandCommand(template string, values map[string]string) string {
	expanded := template
	for key, value := range values {
		expanded = strings.ReplaceAll(expanded, "{"+key+"}", ShellQuote(value))
	}
	return expanded
}

// ShellQuote quotes value for use as a single POSIX shell word.
func ShellQuote(value string) string {
	if value == "" {
		return "''"
	}
	safe := true
	for _, r := range value {
		if !isShellSafeRune(r) {
			safe = false
			break
		}
	}
	if safe {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

func isShellSafeRune(r rune) bool {
	if r >= 'a' && r <= 'z' {
		return true
	}
	if r >= 'A' && r <= 'Z' {
		return true
	}
	if r >= '0' && r <= '9' {
		return true
	}
	switch r {
	case '-', '_', '.', '/', ':', '=', '+', ',', '@':
		return true
	default:
		return false
	}
}

// IsExecutableFile reports whether info describes a regular file with at
// least one execute bit set.
func IsExecutableFile(info os.FileInfo) bool {
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
