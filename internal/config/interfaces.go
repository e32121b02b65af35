package config

import "context"

// SecretProvider resolves secret references named by _SECRET_REF variables.
// The keys are provider-specific identifiers (an environment variable name,
// a file path). Unresolvable keys are omitted from the result.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
