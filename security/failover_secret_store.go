package security

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-delivery/core"
)

type SecretStoreFailurePolicy string

const (
	SecretStoreFailurePolicyStrict   SecretStoreFailurePolicy = "strict_fail"
	SecretStoreFailurePolicyFallback SecretStoreFailurePolicy = "fallback_allowed"
)

type SecretStoreDiagnostic struct {
	OccurredAt time.Time
	SecretRef  string
	Policy     SecretStoreFailurePolicy
	Outcome    string
	Primary    string
	Fallback   string
	Error      string
}

type SecretStoreDiagnosticHook func(event SecretStoreDiagnostic)

type FailoverOption func(*FailoverSecretStore)

// FailoverSecretStore reads from a primary secret backend and, under the
// fallback policy, degrades to a secondary one. The strict policy surfaces
// primary failures untouched so operators notice broken secret backends.
type FailoverSecretStore struct {
	primary        core.SecretStore
	fallback       core.SecretStore
	policy         SecretStoreFailurePolicy
	diagnosticHook SecretStoreDiagnosticHook
	now            func() time.Time
}

func NewFailoverSecretStore(primary core.SecretStore, opts ...FailoverOption) (*FailoverSecretStore, error) {
	if primary == nil {
		return nil, fmt.Errorf("security: primary secret store is required")
	}
	store := &FailoverSecretStore{
		primary: primary,
		policy:  SecretStoreFailurePolicyStrict,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	store.policy = normalizeFailurePolicy(store.policy)
	if store.policy == SecretStoreFailurePolicyFallback && store.fallback == nil {
		return nil, fmt.Errorf("security: fallback policy requires a configured fallback secret store")
	}
	if store.now == nil {
		store.now = func() time.Time { return time.Now().UTC() }
	}
	return store, nil
}

func WithFallbackSecretStore(store core.SecretStore) FailoverOption {
	return func(f *FailoverSecretStore) {
		if f == nil {
			return
		}
		f.fallback = store
	}
}

func WithSecretStoreFailurePolicy(policy SecretStoreFailurePolicy) FailoverOption {
	return func(f *FailoverSecretStore) {
		if f == nil {
			return
		}
		f.policy = normalizeFailurePolicy(policy)
	}
}

func WithSecretStoreDiagnostics(hook SecretStoreDiagnosticHook) FailoverOption {
	return func(f *FailoverSecretStore) {
		if f == nil {
			return
		}
		f.diagnosticHook = hook
	}
}

func WithFailoverClock(now func() time.Time) FailoverOption {
	return func(f *FailoverSecretStore) {
		if f == nil {
			return
		}
		f.now = now
	}
}

func (f *FailoverSecretStore) GetSecret(ctx context.Context, secretRef string) (string, error) {
	if f == nil {
		return "", fmt.Errorf("security: secret store is nil")
	}
	if strings.TrimSpace(secretRef) == "" {
		return "", fmt.Errorf("security: secret ref is required")
	}
	secret, err := f.primary.GetSecret(ctx, secretRef)
	if err == nil {
		return secret, nil
	}
	f.emit(secretRef, "primary_failed", err)
	if f.policy == SecretStoreFailurePolicyStrict || f.fallback == nil {
		return "", fmt.Errorf("security: primary secret lookup failed with %s policy: %w", f.policy, err)
	}
	fallbackSecret, fallbackErr := f.fallback.GetSecret(ctx, secretRef)
	if fallbackErr != nil {
		f.emit(secretRef, "fallback_failed", fallbackErr)
		return "", fmt.Errorf("security: primary secret lookup failed: %v; fallback failed: %w", err, fallbackErr)
	}
	f.emit(secretRef, "fallback_succeeded", err)
	return fallbackSecret, nil
}

func (f *FailoverSecretStore) emit(secretRef string, outcome string, err error) {
	if f == nil || f.diagnosticHook == nil {
		return
	}
	now := f.now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	f.diagnosticHook(SecretStoreDiagnostic{
		OccurredAt: now().UTC(),
		SecretRef:  strings.TrimSpace(secretRef),
		Policy:     f.policy,
		Outcome:    outcome,
		Primary:    describeSecretStore(f.primary),
		Fallback:   describeSecretStore(f.fallback),
		Error:      msg,
	})
}

func normalizeFailurePolicy(policy SecretStoreFailurePolicy) SecretStoreFailurePolicy {
	normalized := SecretStoreFailurePolicy(strings.ToLower(strings.TrimSpace(string(policy))))
	switch normalized {
	case SecretStoreFailurePolicyFallback:
		return SecretStoreFailurePolicyFallback
	default:
		return SecretStoreFailurePolicyStrict
	}
}

func describeSecretStore(store core.SecretStore) string {
	if store == nil {
		return ""
	}
	return reflect.TypeOf(store).String()
}

var _ core.SecretStore = (*FailoverSecretStore)(nil)
