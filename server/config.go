package server

// DefaultBodyLimit allows camera captures and short voice recordings.
const DefaultBodyLimit = 20 << 20

// Config is the HTTP server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// BodyLimit caps request bodies in bytes. Zero uses DefaultBodyLimit.
	BodyLimit int
}
