package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDatasetIsConsistent(t *testing.T) {
	ds := Default()
	require.NoError(t, ds.Validate())
	assert.Len(t, ds.Conditions, 10)
	assert.Len(t, ds.Exercises, 8)
	assert.Len(t, ds.Mappings, 36)
	for _, e := range ds.Exercises {
		assert.True(t, e.IsActive, e.Name)
		assert.Positive(t, e.DurationMinutes, e.Name)
	}
}

func TestValidateRejectsDuplicatePair(t *testing.T) {
	ds := Default()
	ds.Mappings = append(ds.Mappings, Mapping{"Walking", "Hypertension", 0.5, 0.5})
	require.Error(t, ds.Validate())
}

func TestValidateRejectsUnknownReferences(t *testing.T) {
	ds := Default()
	ds.Mappings = []Mapping{{"Swimming", "Hypertension", 0.5, 0.5}}
	require.ErrorContains(t, ds.Validate(), "unknown exercise")

	ds.Mappings = []Mapping{{"Walking", "Gout", 0.5, 0.5}}
	require.ErrorContains(t, ds.Validate(), "unknown condition")
}

func TestValidateRejectsOutOfRangeScores(t *testing.T) {
	ds := Default()
	ds.Mappings = []Mapping{{"Walking", "Hypertension", 1.2, 0.5}}
	require.Error(t, ds.Validate())
}
