package kvstore

// Persisted keys are namespaced and versioned so cache domains never collide
// and a schema change rolls out by bumping the version segment.
const (
	keyNamespace = "pressline"
	keyVersion   = "v1"
)

func key(kind, operand string) string {
	return keyNamespace + ":" + keyVersion + ":" + kind + ":" + operand
}

// HistoryKey addresses a session's turn list.
func HistoryKey(sessionID string) string {
	return key("chat", sessionID)
}

// EmbeddingKey addresses a cached embedding, keyed by the exact query text.
func EmbeddingKey(query string) string {
	return key("embedding", query)
}

// GenerationKey addresses a cached generation, keyed by a digest of the
// assembled context and query.
func GenerationKey(digest string) string {
	return key("gemini", digest)
}
