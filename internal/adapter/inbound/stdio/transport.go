// Package stdio provides the stdio transport adapter. Sessions do not
// apply here: the process lifetime is the session.
package stdio

import (
	"context"
	"os"

	"github.com/super-pm-ai/superpm-mcp/internal/port/inbound"
	"github.com/super-pm-ai/superpm-mcp/internal/service"
)

// Transport is the inbound adapter serving line-delimited JSON-RPC on
// stdin/stdout.
type Transport struct {
	dispatcher *service.DispatchService
}

// NewTransport creates a stdio transport around the dispatcher.
func NewTransport(dispatcher *service.DispatchService) *Transport {
	return &Transport{dispatcher: dispatcher}
}

// Start serves requests from os.Stdin until EOF or context cancellation.
func (t *Transport) Start(ctx context.Context) error {
	return t.dispatcher.Run(ctx, os.Stdin, os.Stdout)
}

// Close gracefully shuts down the transport.
// For stdio, there are no resources to clean up.
func (t *Transport) Close() error {
	return nil
}

var _ inbound.Transport = (*Transport)(nil)
