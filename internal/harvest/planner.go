package harvest

// BatchPlanner bounds how many new products one invocation may enrich. Two
// caps apply: a per-category cap and a global per-run cap. Categories are
// visited in discovery order and allocation stops the moment the global cap
// is reached, even mid-category.
type BatchPlanner struct {
	PerCategoryCap int
	GlobalCap      int
}

// Plan draws up to PerCategoryCap candidates from each group, in order,
// stopping once GlobalCap candidates have been selected. Groups are expected
// to contain only not-yet-seen candidates; the planner does no deduplication
// of its own.
func (p BatchPlanner) Plan(groups [][]Candidate) []Candidate {
	if p.GlobalCap <= 0 {
		return nil
	}
	plan := make([]Candidate, 0, p.GlobalCap)
	for _, group := range groups {
		taken := 0
		for _, c := range group {
			if len(plan) >= p.GlobalCap {
				return plan
			}
			if p.PerCategoryCap > 0 && taken >= p.PerCategoryCap {
				break
			}
			plan = append(plan, c)
			taken++
		}
	}
	return plan
}

// Full reports whether n selected items already exhaust the global cap.
// The pipeline uses it to stop fetching further category pages early.
func (p BatchPlanner) Full(n int) bool {
	return p.GlobalCap > 0 && n >= p.GlobalCap
}

// Draw reports how many candidates Plan would take from a single group of
// the given size, before the global cap applies. The early-stop must count
// this number rather than the raw group size, or an over-full category would
// starve later categories of their share of the global cap.
func (p BatchPlanner) Draw(n int) int {
	if p.PerCategoryCap > 0 && n > p.PerCategoryCap {
		return p.PerCategoryCap
	}
	return n
}
