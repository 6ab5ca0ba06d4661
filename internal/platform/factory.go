package platform

import (
	"github.com/aretw0/dlog/pkg/core"
)

// New opens the work log stored at path and wires the domain service.
//
//	svc, err := dlog.New("~/.config/dlog/dlog.log", dlog.WithAutoInit(true))
func New(path string, opts ...Option) (*core.Service, error) {
	o := applyOptions(opts)

	repo, err := initWith(path, o)
	if err != nil {
		return nil, err
	}

	matcher := core.HostMatcher()
	if o.caseInsensitive != nil {
		matcher.CaseInsensitive = *o.caseInsensitive
	}

	return core.NewService(repo, matcher, o.logger), nil
}
