package pipeline

import (
	"context"

	"schoolsync/internal/fetcher"
)

// Source loads the raw decoded payload for a run.
type Source interface {
	// Name describes where the payload comes from.
	Name() string
	Load(ctx context.Context) (any, error)
}

// HTTPSource fetches the payload from a URL with retries.
type HTTPSource struct {
	fetcher *fetcher.Fetcher
	url     string
}

// NewHTTPSource creates a source backed by f.
func NewHTTPSource(f *fetcher.Fetcher, url string) *HTTPSource {
	return &HTTPSource{fetcher: f, url: url}
}

func (s *HTTPSource) Name() string { return s.url }

func (s *HTTPSource) Load(ctx context.Context) (any, error) {
	return s.fetcher.Fetch(ctx, s.url)
}

// FileSource replays a previously saved payload.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Load(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return fetcher.ReadFile(s.path)
}
