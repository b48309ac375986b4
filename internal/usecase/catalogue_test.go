package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillmatch/assessment-recommender/internal/domain"
	"github.com/skillmatch/assessment-recommender/internal/usecase"
)

func TestCatalogueService_Metadata(t *testing.T) {
	t.Parallel()
	cat := &fakeCatalogue{items: []domain.Assessment{
		{ID: "a1", TestTypes: []string{"K", "P"}, Languages: []string{"en"}, JobFamily: "engineering", JobLevel: "mid"},
		{ID: "a2", TestTypes: []string{"A"}, Languages: []string{"de", "en"}, JobFamily: "sales", JobLevel: "entry"},
		{ID: "a3", TestTypes: []string{"K"}, Languages: []string{"en"}},
	}}
	svc := usecase.NewCatalogueService(cat)

	md, err := svc.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, md.Count)
	assert.Equal(t, []string{"A", "K", "P"}, md.TestTypes)
	assert.Equal(t, []string{"de", "en"}, md.Languages)
	assert.Equal(t, []string{"engineering", "sales"}, md.JobFamilies)
	assert.Equal(t, []string{"entry", "mid"}, md.JobLevels)
}

func TestCatalogueService_Get(t *testing.T) {
	t.Parallel()
	cat := &fakeCatalogue{items: testCatalogue()}
	svc := usecase.NewCatalogueService(cat)

	a, err := svc.Get(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, "Numerical Reasoning", a.Name)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalogueService_List(t *testing.T) {
	t.Parallel()
	cat := &fakeCatalogue{items: testCatalogue()}
	svc := usecase.NewCatalogueService(cat)

	got, err := svc.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
