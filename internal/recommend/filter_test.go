package recommend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillmatch/assessment-recommender/internal/domain"
	"github.com/skillmatch/assessment-recommender/internal/recommend"
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func testCatalogue() map[string]domain.Assessment {
	return map[string]domain.Assessment{
		"short-remote": {ID: "short-remote", DurationMinutes: 20, RemoteCapable: true, Languages: []string{"English"}},
		"long-remote":  {ID: "long-remote", DurationMinutes: 90, RemoteCapable: true, Languages: []string{"English", "German"}},
		"short-onsite": {ID: "short-onsite", DurationMinutes: 15, RemoteCapable: false, Languages: []string{"German"}},
		"unknown-dur":  {ID: "unknown-dur", DurationMinutes: 0, RemoteCapable: true, Languages: []string{"English"}},
	}
}

func ranked(ids ...string) []domain.MergedResult {
	out := make([]domain.MergedResult, len(ids))
	for i, id := range ids {
		out[i] = domain.MergedResult{ItemID: id, FinalScore: 1.0 - float64(i)*0.1, Rank: i + 1}
	}
	return out
}

func TestFilter_MaxDuration(t *testing.T) {
	got, err := recommend.Filter(ranked("long-remote", "short-remote", "short-onsite"), testCatalogue(),
		domain.FilterConstraints{MaxDurationMinutes: intPtr(30)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "short-remote", got[0].ItemID)
	assert.Equal(t, "short-onsite", got[1].ItemID)
}

func TestFilter_UnknownDurationSurvivesMaxDuration(t *testing.T) {
	got, err := recommend.Filter(ranked("unknown-dur"), testCatalogue(),
		domain.FilterConstraints{MaxDurationMinutes: intPtr(10)})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFilter_RequireRemote(t *testing.T) {
	got, err := recommend.Filter(ranked("short-onsite", "short-remote"), testCatalogue(),
		domain.FilterConstraints{RequireRemote: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "short-remote", got[0].ItemID)
}

func TestFilter_RequiredLanguage(t *testing.T) {
	got, err := recommend.Filter(ranked("short-remote", "long-remote", "short-onsite"), testCatalogue(),
		domain.FilterConstraints{RequiredLanguage: strPtr("German")})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "long-remote", got[0].ItemID)
	assert.Equal(t, "short-onsite", got[1].ItemID)
}

func TestFilter_PreservesRelativeOrder(t *testing.T) {
	in := ranked("long-remote", "short-onsite", "short-remote", "unknown-dur")
	got, err := recommend.Filter(in, testCatalogue(), domain.FilterConstraints{})
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, id := range []string{"long-remote", "short-onsite", "short-remote", "unknown-dur"} {
		assert.Equal(t, id, got[i].ItemID)
		assert.Equal(t, i+1, got[i].Rank)
	}
}

func TestFilter_TruncatesToRequestedCount(t *testing.T) {
	in := ranked("long-remote", "short-onsite", "short-remote", "unknown-dur")
	got, err := recommend.Filter(in, testCatalogue(), domain.FilterConstraints{RequestedCount: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFilter_ShortResultIsNotPadded(t *testing.T) {
	// requestedCount = 3 but only 2 items survive; output has length 2.
	got, err := recommend.Filter(ranked("short-remote", "unknown-dur", "short-onsite"), testCatalogue(),
		domain.FilterConstraints{RequireRemote: true, RequestedCount: 3})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFilter_AllRemovedIsEmptyNotError(t *testing.T) {
	got, err := recommend.Filter(ranked("short-onsite"), testCatalogue(),
		domain.FilterConstraints{RequireRemote: true})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilter_UnknownItemDropped(t *testing.T) {
	got, err := recommend.Filter(ranked("ghost", "short-remote"), testCatalogue(), domain.FilterConstraints{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "short-remote", got[0].ItemID)
}

func TestValidateConstraints(t *testing.T) {
	err := recommend.ValidateConstraints(domain.FilterConstraints{MaxDurationMinutes: intPtr(-1)})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	err = recommend.ValidateConstraints(domain.FilterConstraints{RequiredLanguage: strPtr("")})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	require.NoError(t, recommend.ValidateConstraints(domain.FilterConstraints{}))
}

func TestClampCount(t *testing.T) {
	assert.Equal(t, domain.DefaultRequestedCount, recommend.ClampCount(0))
	assert.Equal(t, 1, recommend.ClampCount(-5))
	assert.Equal(t, domain.MaxRequestedCount, recommend.ClampCount(50))
	assert.Equal(t, 7, recommend.ClampCount(7))
}
