package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var (
	// CommandContext allows overriding the command creation for testing
	CommandContext = exec.CommandContext
	// LookPath allows overriding the lookup behavior for testing
	LookPath = exec.LookPath
	// LookupEnv allows overriding environment lookups for testing
	LookupEnv = os.LookupEnv
)

// Secret reference prefixes
const (
	onePasswordPrefix = "op://"
	envPrefix         = "env://"
)

// ResolveSecretReference resolves a credential that may be given
// indirectly: a 1Password secret reference (op://vault/item/field) or an
// environment variable reference (env://NAME). Any other value is returned
// as is. The boolean reports whether value was a reference.
func ResolveSecretReference(ctx context.Context, value string) (string, bool, error) {
	switch {
	case strings.HasPrefix(value, onePasswordPrefix):
		resolved, err := readOnePassword(ctx, value)
		return resolved, true, err
	case strings.HasPrefix(value, envPrefix):
		name := strings.TrimPrefix(value, envPrefix)
		if name == "" {
			return "", true, fmt.Errorf("environment reference %q names no variable", value)
		}
		resolved, ok := LookupEnv(name)
		if !ok {
			return "", true, fmt.Errorf("environment variable %s is not set", name)
		}
		return strings.TrimSpace(resolved), true, nil
	default:
		return value, false, nil
	}
}

func readOnePassword(ctx context.Context, ref string) (string, error) {
	// op://vault/item/field, optionally with a section before the field
	parts := strings.Split(strings.TrimPrefix(ref, onePasswordPrefix), "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("malformed 1Password reference %q: want op://vault/item/field", ref)
	}
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("malformed 1Password reference %q: empty segment", ref)
		}
	}

	if _, err := LookPath("op"); err != nil {
		return "", fmt.Errorf("1Password CLI (op) not found in PATH: %w", err)
	}

	cmd := CommandContext(ctx, "op", "read", ref)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to read secret from 1Password: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("failed to read secret from 1Password: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}
