// Package fetchq exposes the service builder.
package fetchq

import (
	"github.com/adamwoolhether/fetchq/client"
)

// New instantiates a new *Service with the provided options.
// If not specified, a default http.Client and http.Transport are used.
func New(opts ...client.Option) (*client.Service, error) {
	return client.Build(opts...)
}
