package config

import (
	"context"
	"testing"
)

// Compile-time checks live next to the interface so a signature drift
// fails here first.
func TestSecretProviderImplementations(t *testing.T) {
	var _ SecretProvider = (*EnvVarProvider)(nil)
	var _ SecretProvider = (*SSMProvider)(nil)

	// A one-off literal satisfies the interface too.
	fn := secretFunc(func(_ context.Context, keys []string) (map[string]string, error) {
		return map[string]string{}, nil
	})
	var _ SecretProvider = fn
}

type secretFunc func(ctx context.Context, keys []string) (map[string]string, error)

func (f secretFunc) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	return f(ctx, keys)
}
