// Package projects resolves an opaque project reference to the canonical
// project across the legacy project tables.
package projects

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// Resolver queries sources in priority order. Nothing is cached, so every call
// reflects current source data.
type Resolver struct {
	sources []Source
	strict  bool
	logger  *slog.Logger
}

type Option func(*Resolver)

// WithStrict makes conflicting ownership across sources an error instead of a warning.
func WithStrict(strict bool) Option {
	return func(r *Resolver) { r.strict = strict }
}

func NewResolver(sources []Source, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		sources: sources,
		logger:  logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type match struct {
	source  string
	project *entity.Project
}

// Resolve returns the highest priority match for ref.
func (r *Resolver) Resolve(ctx context.Context, ref int64) (*entity.Project, error) {
	if ref <= 0 {
		return nil, common.NewAppError("PROJECT_NOT_FOUND", fmt.Sprintf("project %d not found", ref), common.ErrProjectNotFound)
	}

	var matches []match
	for _, s := range r.sources {
		p, err := s.Lookup(ctx, ref)
		if err != nil {
			r.logger.Error("project source lookup failed", "source", s.Name(), "ref", ref, "error", err)
			return nil, common.WrapError(err, "resolve project")
		}
		if p != nil {
			matches = append(matches, match{source: s.Name(), project: p})
		}
	}
	if len(matches) == 0 {
		return nil, common.NewAppError("PROJECT_NOT_FOUND", fmt.Sprintf("project %d not found", ref), common.ErrProjectNotFound)
	}

	winner := matches[0]
	for _, m := range matches[1:] {
		if sameProject(winner.project, m.project) || sameOwnership(winner.project, m.project) {
			continue
		}
		r.logger.Warn("project reference matches sources with conflicting ownership",
			"ref", ref,
			"chosen_source", winner.source,
			"chosen_homeowner_id", winner.project.HomeownerID,
			"chosen_contractor_id", winner.project.ContractorID,
			"other_source", m.source,
			"other_homeowner_id", m.project.HomeownerID,
			"other_contractor_id", m.project.ContractorID,
		)
		if r.strict {
			return nil, common.NewAppError("AMBIGUOUS_PROJECT",
				fmt.Sprintf("project %d matches %s and %s with different owners", ref, winner.source, m.source),
				common.ErrAmbiguousProject)
		}
	}

	r.logger.Debug("project resolved", "ref", ref, "project_id", winner.project.ID, "source", winner.source)
	return winner.project, nil
}

func sameProject(a, b *entity.Project) bool {
	return a.ID == b.ID && a.SourceKind == b.SourceKind
}

func sameOwnership(a, b *entity.Project) bool {
	return a.HomeownerID == b.HomeownerID && (a.ContractorID == b.ContractorID || a.ContractorID == 0 || b.ContractorID == 0)
}
