package analyzer

import (
	"context"
	"os"
	"strings"
	"sync"
)

// CredentialProvider returns the remote credential or false when none is configured.
type CredentialProvider interface {
	Credential(ctx context.Context) (string, bool)
}

// CredentialFunc adapts a function to CredentialProvider.
type CredentialFunc func(ctx context.Context) (string, bool)

func (f CredentialFunc) Credential(ctx context.Context) (string, bool) {
	return f(ctx)
}

// EnvCredential returns the first non-empty variable from names.
func EnvCredential(names ...string) CredentialProvider {
	return CredentialFunc(func(context.Context) (string, bool) {
		for _, name := range names {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				return v, true
			}
		}
		return "", false
	})
}

func StaticCredential(credential string) CredentialProvider {
	return CredentialFunc(func(context.Context) (string, bool) {
		credential := strings.TrimSpace(credential)
		return credential, credential != ""
	})
}

// NoCredential always reports a missing credential, forcing local analysis.
var NoCredential CredentialProvider = CredentialFunc(func(context.Context) (string, bool) {
	return "", false
})

// Cached resolves p once per process and returns the same answer afterwards.
func Cached(p CredentialProvider) CredentialProvider {
	var (
		once       sync.Once
		credential string
		ok         bool
	)
	return CredentialFunc(func(ctx context.Context) (string, bool) {
		once.Do(func() {
			credential, ok = p.Credential(ctx)
		})
		return credential, ok
	})
}
