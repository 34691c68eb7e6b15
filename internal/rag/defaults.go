package rag

import (
	"context"

	"paperhub/internal/retrieval"
)

// filterDefaults decorates an Engine so that requests inherit a configured
// set of retrieval filters. Keys set on the request itself win.
type filterDefaults struct {
	Engine
	defaults map[string]any
}

// WithDefaultFilters returns an Engine whose requests are merged with the
// given retrieval filters before the pipeline runs. A nil or empty defaults
// map returns the engine unchanged.
func WithDefaultFilters(inner Engine, defaults map[string]any) Engine {
	if len(defaults) == 0 {
		return inner
	}
	return &filterDefaults{Engine: inner, defaults: defaults}
}

func (f *filterDefaults) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	req.Filters = mergeFilters(f.defaults, req.Filters)
	return f.Engine.Ask(ctx, req)
}

func (f *filterDefaults) AskStream(ctx context.Context, req AskRequest, emit func(StreamEvent) error) error {
	req.Filters = mergeFilters(f.defaults, req.Filters)
	return f.Engine.AskStream(ctx, req, emit)
}

func (f *filterDefaults) Search(ctx context.Context, req SearchRequest) ([]retrieval.Hit, error) {
	req.Filters = mergeFilters(f.defaults, req.Filters)
	return f.Engine.Search(ctx, req)
}

func mergeFilters(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
