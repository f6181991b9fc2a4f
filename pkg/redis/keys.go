package redis

import "strings"

const defaultNamespace = "vx"

// Keyspace builds colon-joined keys under a shared namespace. Blank segments
// are dropped so optional parts never produce "::".
type Keyspace struct {
	namespace string
}

func NewKeyspace(namespace string) Keyspace {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = defaultNamespace
	}
	return Keyspace{namespace: namespace}
}

func (k Keyspace) key(kind string, parts ...string) string {
	ns := k.namespace
	if ns == "" {
		ns = defaultNamespace
	}
	var b strings.Builder
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

func (k Keyspace) Idempotency(scope, id string) string { return k.key("idempotency", scope, id) }
func (k Keyspace) RateLimit(scope string) string       { return k.key("rate_limit", scope) }
func (k Keyspace) AccessSession(accessID string) string {
	return k.key("session", "access", accessID)
}
func (k Keyspace) Pairing(token string) string { return k.key("pairing", token) }
func (k Keyspace) PairingOwner(specialistID string) string {
	return k.key("pairing", "owner", specialistID)
}
func (k Keyspace) Lock(name string) string { return k.key("lock", name) }
