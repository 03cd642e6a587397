package routes

import (
	"math/rand"
	"testing"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/stretchr/testify/require"
)

func stopsAt(pts ...[2]float64) []*models.Stop {
	out := make([]*models.Stop, 0, len(pts))
	for i, p := range pts {
		out = append(out, &models.Stop{
			ID:     string(rune('a' + i)),
			Coords: &models.Coordinates{Lat: p[0], Lng: p[1]},
		})
	}
	return out
}

func ids(stops []*models.Stop) []string {
	out := make([]string, 0, len(stops))
	for _, s := range stops {
		out = append(out, s.ID)
	}
	return out
}

func TestNearestNeighbour_Basic(t *testing.T) {
	in := stopsAt([2]float64{0, 0}, [2]float64{3, 0}, [2]float64{1, 0}, [2]float64{5, 5})
	out, err := NearestNeighbour(in)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c", "b", "d"}, ids(out))
}

func TestNearestNeighbour_TiesByInputOrder(t *testing.T) {
	in := stopsAt([2]float64{0, 0}, [2]float64{0, 1}, [2]float64{1, 0}, [2]float64{0, -1})
	out, err := NearestNeighbour(in)
	require.NoError(t, err)
	require.Equal(t, "b", out[1].ID)
}

func TestNearestNeighbour_BlindStopsAtTail(t *testing.T) {
	in := stopsAt([2]float64{0, 0}, [2]float64{2, 0}, [2]float64{1, 0})
	in = append(in[:1], append([]*models.Stop{{ID: "x"}}, in[1:]...)...)
	in = append(in, &models.Stop{ID: "y"})

	out, err := NearestNeighbour(in)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c", "b", "x", "y"}, ids(out))
}

func TestNearestNeighbour_Insufficient(t *testing.T) {
	_, err := NearestNeighbour([]*models.Stop{{ID: "x"}, {ID: "y", Coords: &models.Coordinates{}}})
	require.ErrorIs(t, err, errs.ErrInsufficientCoordinates)
}

func TestNearestNeighbour_Deterministic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	pts := make([][2]float64, 30)
	for i := range pts {
		pts[i] = [2]float64{r.Float64() * 10, r.Float64() * 10}
	}
	first, err := NearestNeighbour(stopsAt(pts...))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := NearestNeighbour(stopsAt(pts...))
		require.NoError(t, err)
		require.Equal(t, ids(first), ids(again))
	}
}

func TestTwoOpt_UncrossesAndKeepsStart(t *testing.T) {
	// Visiting (1,1) before (1,0) is longer than the other way round.
	in := stopsAt([2]float64{0, 0}, [2]float64{1, 1}, [2]float64{1, 0}, [2]float64{2, 1})
	path := []*models.Stop{in[0], in[1], in[2], in[3]}
	before, _ := PathMetrics(path, 0, 0)

	out := TwoOpt(path)
	after, _ := PathMetrics(out, 0, 0)
	require.Equal(t, "a", out[0].ID)
	require.LessOrEqual(t, after, before)
	require.Equal(t, ids(out), ids(TwoOpt(path)))
}

func TestPathMetrics(t *testing.T) {
	in := stopsAt([2]float64{0, 0}, [2]float64{0, 1}, [2]float64{0, 2})
	in = append(in, &models.Stop{ID: "blind"})
	km, minutes := PathMetrics(in, 60, 5)
	require.InDelta(t, 2*KmPerDegree, km, 0.01)
	require.InDelta(t, 2*KmPerDegree+20, minutes, 0.1)
}
