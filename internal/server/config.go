package server

const (
	// DefaultKey is the list read by Stats and used when a request names no key.
	DefaultKey = "ADD.txt"

	// MaxListBytes bounds the serialized size of a stored list.
	MaxListBytes = 24 << 20

	// maxBodyBytes bounds request bodies; it leaves room for JSON framing
	// around a list that is at the MaxListBytes limit.
	maxBodyBytes = 32 << 20
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	// APIKey is the shared secret callers must present. Empty means every
	// protected route answers with a configuration error.
	APIKey string
	// Store is the bound backend. Nil means every route that touches the
	// store answers with a binding error.
	Store Store
}
