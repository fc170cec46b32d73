package providers

import (
	"context"
	"fmt"
)

// Image is one picture attached to a prompt.
type Image struct {
	Data     []byte
	MIMEType string
}

// Config represents the configuration for an LLM provider
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	Images      []Image
	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
}

// Provider defines the interface for an LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}

// Named builds providers by name.
type Named map[string]func() Provider

// Get returns the provider registered under name.
func (n Named) Get(name string) (Provider, error) {
	factory, ok := n[name]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
	return factory(), nil
}
