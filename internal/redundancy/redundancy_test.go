package redundancy

import (
	"testing"

	"github.com/cardiopath/nets/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestJaccard_IdenticalSetsIsOne(t *testing.T) {
	require.Equal(t, 1.0, Jaccard([]string{"A", "B"}, []string{"B", "A"}))
}

func TestJaccard_DisjointSetsIsZero(t *testing.T) {
	require.Equal(t, 0.0, Jaccard([]string{"A"}, []string{"B"}))
}

func newPathway(id string, genes []string) *models.ScoredPathway {
	return &models.ScoredPathway{Aggregated: models.AggregatedPathway{
		Pathway: models.PathwayEntry{ID: id, EvidenceGenes: genes},
	}}
}

func TestFilter_DropsHighlySimilarLowerRanked(t *testing.T) {
	pathways := []*models.ScoredPathway{
		newPathway("top", []string{"A", "B", "C"}),
		newPathway("near-dup", []string{"A", "B", "C", "D"}), // Jaccard 3/4 = 0.75 >= 0.7
		newPathway("distinct", []string{"X", "Y", "Z"}),
	}
	kept, dropped := Filter(pathways, DefaultThreshold)
	require.Equal(t, 1, dropped)
	require.Len(t, kept, 2)
	require.Equal(t, "top", kept[0].Aggregated.Pathway.ID)
	require.Equal(t, "distinct", kept[1].Aggregated.Pathway.ID)
}
