// Package target implements the load contract: delivery of a validated data
// file to its configured destination. Sinks are registered per target type so
// a real destination can be plugged in without changing the pipeline.
package target

import (
	"context"
	"fmt"

	"github.com/jo-hoe/mcpipeline/internal/mcp"
)

// Loader delivers the data file at dataPath to the destination named by the
// directives. It reports ok plus an optional failure message; it never aborts
// the pass.
type Loader interface {
	Load(ctx context.Context, dataPath string, d mcp.Directives) (bool, string)
}

// Registry maps a load_target_type to its Loader.
type Registry struct {
	loaders map[string]Loader
}

func NewRegistry() *Registry {
	return &Registry{loaders: map[string]Loader{}}
}

// Add registers a loader for a target type, replacing any previous one.
func (r *Registry) Add(targetType string, l Loader) {
	r.loaders[targetType] = l
}

// Get returns the loader registered for a target type.
func (r *Registry) Get(targetType string) (Loader, bool) {
	l, ok := r.loaders[targetType]
	return l, ok
}

// Check dispatches to the loader registered for the record's target type.
// Missing directive fields or an unregistered type are load failures for that
// job, not pipeline errors.
func (r *Registry) Check(ctx context.Context, dataPath string, d mcp.Directives) (bool, string) {
	if d.LoadTargetType == "" || d.LoadTargetDestination == "" {
		return false, "missing load_target_type or load_target_destination directive"
	}
	l, ok := r.Get(d.LoadTargetType)
	if !ok {
		return false, fmt.Sprintf("load target type %q not registered", d.LoadTargetType)
	}
	return l.Load(ctx, dataPath, d)
}
