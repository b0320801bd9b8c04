package harvest

// Deduplicator collapses candidates by identity, both within one run and
// against the persisted ledger. It is not safe for concurrent use; the
// pipeline runs a single sequential worker.
type Deduplicator struct {
	ledger Ledger
	seen   map[string]Candidate
}

// NewDeduplicator builds a Deduplicator backed by the given ledger.
func NewDeduplicator(ledger Ledger) *Deduplicator {
	return &Deduplicator{
		ledger: ledger,
		seen:   make(map[string]Candidate),
	}
}

// Admit reports whether the candidate is novel and should proceed to
// enrichment. A candidate already present in the ledger is never admitted.
// When two candidates share an identity within the run, the more complete one
// is kept; ties break toward the earlier extraction stage.
func (d *Deduplicator) Admit(c Candidate) bool {
	id := c.Record.Identity()
	if id == "" {
		return false
	}
	if d.ledger != nil && d.ledger.Contains(id) {
		return false
	}
	prev, dup := d.seen[id]
	if !dup {
		d.seen[id] = c
		return true
	}
	if better(c, prev) {
		d.seen[id] = c
	}
	return false
}

// Resolve returns the winning candidate for an identity after all
// admissions. The pipeline consults it once discovery is finished, so a
// richer duplicate found in a later category replaces the first-admitted
// candidate before planning.
func (d *Deduplicator) Resolve(identity string) (Candidate, bool) {
	c, ok := d.seen[identity]
	return c, ok
}

// better implements the duplicate tie-break: more non-empty fields wins, an
// already-resolved image wins, then the earlier stage wins.
func better(a, b Candidate) bool {
	af, bf := a.Record.filledFields(), b.Record.filledFields()
	if af != bf {
		return af > bf
	}
	if (a.Record.ImageURL != "") != (b.Record.ImageURL != "") {
		return a.Record.ImageURL != ""
	}
	return a.Stage < b.Stage
}

// MergeCandidates folds several candidates for the same identity into one
// record, first-non-empty-field-wins in stage priority order.
func MergeCandidates(cands []Candidate) ProductRecord {
	ordered := make([]Candidate, len(cands))
	copy(ordered, cands)
	// Insertion sort keeps the input order stable within a stage.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Stage < ordered[j-1].Stage; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	var out ProductRecord
	for _, c := range ordered {
		mergeMissing(&out, c.Record)
	}
	return out
}

func mergeMissing(dst *ProductRecord, src ProductRecord) {
	fill := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	fill(&dst.Name, src.Name)
	fill(&dst.Price, src.Price)
	fill(&dst.OriginalPrice, src.OriginalPrice)
	fill(&dst.Description, src.Description)
	fill(&dst.DetailedDescription, src.DetailedDescription)
	fill(&dst.Ingredients, src.Ingredients)
	fill(&dst.ImageURL, src.ImageURL)
	fill(&dst.ProductURL, src.ProductURL)
	fill(&dst.Rating, src.Rating)
	fill(&dst.ReviewCount, src.ReviewCount)
	fill(&dst.Category, src.Category)
	fill(&dst.Brand, src.Brand)
	if dst.Availability == "" || dst.Availability == Unknown {
		if src.Availability != "" {
			dst.Availability = src.Availability
		}
	}
	if dst.ScrapedAt.IsZero() {
		dst.ScrapedAt = src.ScrapedAt
	}
}
