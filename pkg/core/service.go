package core

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/aretw0/lifecycle"
)

// Service handles the business rules of the work log on top of a Repository.
type Service struct {
	repo    Repository
	matcher Matcher
	logger  *slog.Logger
}

// NewService creates a new Service. A nil logger discards output.
func NewService(repo Repository, matcher Matcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, matcher: matcher, logger: logger}
}

// Write validates the request and appends it.
func (s *Service) Write(ctx context.Context, req WriteRequest) (Entry, error) {
	if err := req.Validate(); err != nil {
		return Entry{}, err
	}
	req = req.Normalize()

	e, err := s.repo.Append(ctx, req.Directory, req.Message, req.Tags)
	if err != nil {
		return Entry{}, err
	}
	s.logger.Debug("entry written", "id", e.ID, "directory", e.Directory, "tags", e.Tags)
	return e, nil
}

// Query returns the entries selected by the filter, most recent first.
func (s *Service) Query(ctx context.Context, f Filter) ([]Entry, error) {
	f.Anchor = NormalizeDir(f.Anchor)
	return Query(ctx, s.repo, s.Matcher(), f)
}

// Directories lists every distinct directory that has entries, sorted.
func (s *Service) Directories(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for e, err := range s.repo.Scan(ctx) {
		if err != nil {
			return nil, err
		}
		seen[e.Directory] = struct{}{}
	}

	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)
	return dirs, nil
}

// Follow streams entries appended after the call that pass the filter.
// Limit is ignored. The channel is closed when ctx is done or the
// repository stops following.
func (s *Service) Follow(ctx context.Context, f Filter) (<-chan Entry, error) {
	fl, ok := s.repo.(Followable)
	if !ok {
		return nil, errors.New("repository does not support following")
	}
	f.Anchor = NormalizeDir(f.Anchor)
	if err := f.Validate(); err != nil {
		return nil, err
	}

	src, err := fl.Follow(ctx)
	if err != nil {
		return nil, err
	}

	m := s.Matcher()
	out := make(chan Entry)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		for {
			var e Entry
			select {
			case <-ctx.Done():
				return nil
			case next, ok := <-src:
				if !ok {
					return nil
				}
				e = next
			}
			if !f.Matches(m, e) {
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return nil
			}
		}
	})
	return out, nil
}

// Import appends entries that already carry a creation time.
// Each one is validated first; nothing is written if any is invalid.
func (s *Service) Import(ctx context.Context, entries []Entry) ([]Entry, error) {
	im, ok := s.repo.(Importer)
	if !ok {
		return nil, errors.New("repository does not support import")
	}

	batch := make([]Entry, 0, len(entries))
	for _, e := range entries {
		req := WriteRequest{Directory: e.Directory, Message: e.Message, Tags: e.Tags}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		req = req.Normalize()
		batch = append(batch, Entry{
			CreatedAt: e.CreatedAt,
			Directory: req.Directory,
			Message:   req.Message,
			Tags:      req.Tags,
		})
	}

	stored, err := im.Import(ctx, batch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("entries imported", "count", len(stored))
	return stored, nil
}

// Matcher returns the directory matching policy in use.
func (s *Service) Matcher() Matcher {
	return s.matcher
}

// Close releases the repository.
func (s *Service) Close() error {
	return s.repo.Close()
}
