package provider

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/scrubber/internal/scrobble"
)

// Multi runs several providers in priority order and merges their
// results per track index. Provider order is the priority order: the
// orchestrator takes the first suggestion in each index's list.
type Multi struct {
	providers []Provider
	logger    *log.Logger
}

var _ Provider = (*Multi)(nil)

// NewMulti builds a priority-ordered composite provider.
func NewMulti(logger *log.Logger, providers ...Provider) *Multi {
	if logger == nil {
		logger = log.Default()
	}
	return &Multi{providers: providers, logger: logger}
}

func (m *Multi) Name() string {
	return "multi"
}

// AnalyzeTracks merges each provider's suggestions in order. A failing
// provider is skipped with a warning rather than failing the batch.
func (m *Multi) AnalyzeTracks(ctx context.Context, tracks []scrobble.Track, opts Options) (map[int][]Suggestion, error) {
	merged := make(map[int][]Suggestion)

	for _, p := range m.providers {
		results, err := p.AnalyzeTracks(ctx, tracks, opts)
		if err != nil {
			m.logger.Warn("suggestion provider failed, skipping",
				"provider", p.Name(), "err", err)
			continue
		}
		for idx, suggestions := range results {
			merged[idx] = append(merged[idx], suggestions...)
		}
	}

	return merged, nil
}
