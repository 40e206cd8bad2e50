// Package rediskey centralizes the redis key conventions shared between the
// API server and the task worker.
package rediskey

import "fmt"

const (
	// AllowListChallengePrefix namespaces pending DNS verification codes.
	AllowListChallengePrefix = "allowlist:challenge"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildAllowListChallengeKey returns "allowlist:challenge:{sourceID}".
func BuildAllowListChallengeKey(sourceID string) string {
	return NamespaceKey(AllowListChallengePrefix, sourceID)
}
