package projects

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository"
)

// Source is one legacy project representation. Lookup returns (nil, nil) on a miss.
type Source interface {
	Name() string
	Lookup(ctx context.Context, ref int64) (*entity.Project, error)
}

// DefaultSources returns the adapters in resolution priority order.
func DefaultSources(repo repository.LegacyProjectRepository) []Source {
	return []Source{
		&constructionProjectSource{repo: repo},
		&estimateAliasSource{repo: repo},
		&acceptedEstimateSource{repo: repo},
		&sendEstimateSource{repo: repo},
		&layoutRequestSource{repo: repo},
	}
}

type constructionProjectSource struct {
	repo repository.LegacyProjectRepository
}

func (s *constructionProjectSource) Name() string { return "construction_projects.id" }

func (s *constructionProjectSource) Lookup(ctx context.Context, ref int64) (*entity.Project, error) {
	row, err := s.repo.ConstructionProjectByID(ctx, ref)
	if err != nil || row == nil {
		return nil, err
	}
	return fromConstructionProject(ctx, s.repo, row)
}

// estimateAliasSource matches refs that are the send estimate a construction project was created from.
type estimateAliasSource struct {
	repo repository.LegacyProjectRepository
}

func (s *estimateAliasSource) Name() string { return "construction_projects.estimate_id" }

func (s *estimateAliasSource) Lookup(ctx context.Context, ref int64) (*entity.Project, error) {
	row, err := s.repo.ConstructionProjectByEstimateID(ctx, ref)
	if err != nil || row == nil {
		return nil, err
	}
	return fromConstructionProject(ctx, s.repo, row)
}

func fromConstructionProject(ctx context.Context, repo repository.LegacyProjectRepository, row *repository.LegacyProject) (*entity.Project, error) {
	p := &entity.Project{
		ID:           row.ID,
		HomeownerID:  row.HomeownerID,
		ContractorID: row.ContractorID,
		SourceKind:   constants.SourceConstructionProject,
		Status:       row.Status,
		Name:         row.Name,
	}
	if row.TotalCost != nil && *row.TotalCost > 0 {
		p.BudgetCeiling = *row.TotalCost
		return p, nil
	}
	// fall back to the estimate the project was created from
	if row.EstimateID != 0 {
		est, err := repo.SendEstimate(ctx, row.EstimateID)
		if err != nil {
			return nil, err
		}
		if est != nil && est.TotalCost != nil {
			p.BudgetCeiling = *est.TotalCost
		}
	}
	return p, nil
}

type acceptedEstimateSource struct {
	repo repository.LegacyProjectRepository
}

func (s *acceptedEstimateSource) Name() string { return "contractor_estimates" }

func (s *acceptedEstimateSource) Lookup(ctx context.Context, ref int64) (*entity.Project, error) {
	row, err := s.repo.AcceptedEstimate(ctx, ref)
	if err != nil || row == nil {
		return nil, err
	}
	p := &entity.Project{
		ID:           row.ID,
		HomeownerID:  row.HomeownerID,
		ContractorID: row.ContractorID,
		SourceKind:   constants.SourceAcceptedEstimate,
		Status:       row.Status,
		Name:         row.Name,
	}
	if row.TotalCost != nil {
		p.BudgetCeiling = *row.TotalCost
	}
	return p, nil
}

type sendEstimateSource struct {
	repo repository.LegacyProjectRepository
}

func (s *sendEstimateSource) Name() string { return "contractor_send_estimates" }

func (s *sendEstimateSource) Lookup(ctx context.Context, ref int64) (*entity.Project, error) {
	row, err := s.repo.SendEstimate(ctx, ref, "accepted", "project_created")
	if err != nil || row == nil {
		return nil, err
	}
	homeowner := row.HomeownerID
	if homeowner == 0 && row.EstimateID != 0 {
		// older rows only know the homeowner through the layout send
		homeowner, err = s.repo.LayoutSendHomeowner(ctx, row.EstimateID)
		if err != nil {
			return nil, err
		}
	}
	p := &entity.Project{
		ID:           row.ID,
		HomeownerID:  homeowner,
		ContractorID: row.ContractorID,
		SourceKind:   constants.SourceSendEstimate,
		Status:       row.Status,
	}
	if row.TotalCost != nil {
		p.BudgetCeiling = *row.TotalCost
	}
	return p, nil
}

type layoutRequestSource struct {
	repo repository.LegacyProjectRepository
}

func (s *layoutRequestSource) Name() string { return "layout_requests" }

func (s *layoutRequestSource) Lookup(ctx context.Context, ref int64) (*entity.Project, error) {
	row, err := s.repo.LayoutRequest(ctx, ref)
	if err != nil || row == nil {
		return nil, err
	}
	contractor, err := s.repo.LatestLayoutContractor(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return &entity.Project{
		ID:            row.ID,
		HomeownerID:   row.HomeownerID,
		ContractorID:  contractor,
		BudgetCeiling: ParseBudgetRange(row.BudgetRange),
		SourceKind:    constants.SourceLayoutRequest,
		Status:        row.Status,
	}, nil
}

var budgetNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseBudgetRange reads the upper bound of a free text budget such as
// "20-30 lakhs", "1.5 crore" or "2500000". Unparseable input yields 0.
func ParseBudgetRange(s string) float64 {
	norm := strings.ToLower(strings.ReplaceAll(s, ",", ""))
	nums := budgetNumber.FindAllString(norm, -1)
	if len(nums) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(nums[len(nums)-1], 64)
	if err != nil {
		return 0
	}
	switch {
	case strings.Contains(norm, "crore") || strings.Contains(norm, "cr"):
		v *= 10000000
	case strings.Contains(norm, "lakh") || strings.Contains(norm, "lac"):
		v *= 100000
	}
	return v
}
