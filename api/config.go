// Package api provides the HTTP API server that answers questions over the
// ingested document corpus.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// DisableMCP turns off the /mcp endpoint.
	DisableMCP bool
}
