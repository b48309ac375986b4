package usecase

import (
	"sort"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// CatalogueService exposes read access to the assessment catalogue.
type CatalogueService struct {
	Repo domain.CatalogueRepository
}

// NewCatalogueService constructs a CatalogueService.
func NewCatalogueService(r domain.CatalogueRepository) CatalogueService {
	return CatalogueService{Repo: r}
}

// List returns a catalogue page.
func (s CatalogueService) List(ctx domain.Context, offset, limit int) ([]domain.Assessment, error) {
	return s.Repo.List(ctx, offset, limit)
}

// Get returns one assessment by id.
func (s CatalogueService) Get(ctx domain.Context, id string) (domain.Assessment, error) {
	return s.Repo.GetByID(ctx, id)
}

// CatalogueMetadata summarizes the filterable dimensions of the catalogue.
type CatalogueMetadata struct {
	Count       int      `json:"count"`
	TestTypes   []string `json:"test_types"`
	Languages   []string `json:"languages"`
	JobFamilies []string `json:"job_families"`
	JobLevels   []string `json:"job_levels"`
}

// Metadata scans the catalogue and returns its distinct filter values,
// each sorted ascending.
func (s CatalogueService) Metadata(ctx domain.Context) (CatalogueMetadata, error) {
	all, err := s.Repo.GetAll(ctx)
	if err != nil {
		return CatalogueMetadata{}, err
	}
	types := map[string]struct{}{}
	langs := map[string]struct{}{}
	families := map[string]struct{}{}
	levels := map[string]struct{}{}
	for _, a := range all {
		for _, t := range a.TestTypes {
			types[t] = struct{}{}
		}
		for _, l := range a.Languages {
			langs[l] = struct{}{}
		}
		if a.JobFamily != "" {
			families[a.JobFamily] = struct{}{}
		}
		if a.JobLevel != "" {
			levels[a.JobLevel] = struct{}{}
		}
	}
	return CatalogueMetadata{
		Count:       len(all),
		TestTypes:   sortedKeys(types),
		Languages:   sortedKeys(langs),
		JobFamilies: sortedKeys(families),
		JobLevels:   sortedKeys(levels),
	}, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
