package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	RepositoryType  string `json:"repository_type"`
	Repository      any    `json:"repository,omitempty"`
	CaseInsensitive bool   `json:"case_insensitive_paths"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	st := ServiceState{
		RepositoryType:  "repository",
		CaseInsensitive: s.matcher.CaseInsensitive,
	}
	if comp, ok := s.repo.(introspection.Component); ok {
		st.RepositoryType = comp.ComponentType()
	}
	if in, ok := s.repo.(introspection.Introspectable); ok {
		st.Repository = in.State()
	}
	return st
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
