package harvest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func group(category string, n int) []Candidate {
	out := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Candidate{
			Record: ProductRecord{
				Name:     fmt.Sprintf("%s product %d", category, i),
				Category: category,
			},
			Stage: StageStructural,
		})
	}
	return out
}

func TestPlanPerCategoryCap(t *testing.T) {
	t.Parallel()

	p := BatchPlanner{PerCategoryCap: 10, GlobalCap: 60}
	plan := p.Plan([][]Candidate{group("cleansers", 25), group("serums", 4)})

	require.Len(t, plan, 14)
	require.Equal(t, "cleansers", plan[9].Record.Category)
	require.Equal(t, "serums", plan[10].Record.Category)
}

func TestPlanGlobalCapStopsMidCategory(t *testing.T) {
	t.Parallel()

	p := BatchPlanner{PerCategoryCap: 10, GlobalCap: 15}
	plan := p.Plan([][]Candidate{
		group("a", 10),
		group("b", 10),
		group("c", 10),
	})

	require.Len(t, plan, 15)
	require.Equal(t, "b", plan[14].Record.Category, "the global cap cuts the second category short")
}

func TestPlanZeroGlobalCap(t *testing.T) {
	t.Parallel()

	p := BatchPlanner{PerCategoryCap: 10}
	require.Empty(t, p.Plan([][]Candidate{group("a", 3)}))
}

func TestFull(t *testing.T) {
	t.Parallel()

	p := BatchPlanner{PerCategoryCap: 10, GlobalCap: 60}
	require.False(t, p.Full(59))
	require.True(t, p.Full(60))
	require.False(t, BatchPlanner{}.Full(100), "an unset global cap never reports full")
}

func TestDraw(t *testing.T) {
	t.Parallel()

	p := BatchPlanner{PerCategoryCap: 10, GlobalCap: 60}
	require.Equal(t, 10, p.Draw(25), "an over-full group contributes only its capped share")
	require.Equal(t, 4, p.Draw(4))
	require.Equal(t, 25, BatchPlanner{GlobalCap: 60}.Draw(25), "no per-category cap means the full group counts")
}
