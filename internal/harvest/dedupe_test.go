package harvest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubLedger is an in-memory Ledger for deduplication tests.
type stubLedger struct {
	seen map[string]struct{}
}

func newStubLedger(identities ...string) *stubLedger {
	l := &stubLedger{seen: make(map[string]struct{})}
	for _, id := range identities {
		l.seen[id] = struct{}{}
	}
	return l
}

func (l *stubLedger) Load(context.Context) error { return nil }
func (l *stubLedger) Contains(id string) bool {
	_, ok := l.seen[id]
	return ok
}
func (l *stubLedger) Record(_ context.Context, id string) error {
	l.seen[id] = struct{}{}
	return nil
}
func (l *stubLedger) Flush(context.Context) error { return nil }
func (l *stubLedger) Size() int                   { return len(l.seen) }

func TestAdmitRejectsLedgeredIdentity(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(newStubLedger("serumizer"))
	admitted := d.Admit(Candidate{
		Record: ProductRecord{Name: "Serumizer™"},
		Stage:  StageStructural,
	})
	require.False(t, admitted, "a previously completed product must not re-enter the batch")
}

func TestAdmitRejectsEmptyIdentity(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(newStubLedger())
	require.False(t, d.Admit(Candidate{Record: ProductRecord{}}))
}

func TestAdmitKeepsBetterDuplicate(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(newStubLedger())
	sparse := Candidate{
		Record: ProductRecord{Name: "Fix+ Spray"},
		Stage:  StageStructural,
	}
	rich := Candidate{
		Record: ProductRecord{
			Name:     "Fix+ Spray",
			Price:    "$34.00",
			ImageURL: "https://cdn.example.com/mac/fix.png",
		},
		Stage: StagePattern,
	}

	require.True(t, d.Admit(sparse))
	require.False(t, d.Admit(rich), "duplicate within the run is not re-admitted")

	winner, ok := d.Resolve(sparse.Record.Identity())
	require.True(t, ok)
	require.Equal(t, "$34.00", winner.Record.Price, "the more complete duplicate replaces the kept candidate")
}

func TestAdmitTieBreaksTowardEarlierStage(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(newStubLedger())
	fromPattern := Candidate{
		Record: ProductRecord{Name: "Cleansing Oil", Price: "$57.00"},
		Stage:  StagePattern,
	}
	fromStructural := Candidate{
		Record: ProductRecord{Name: "Cleansing Oil", Price: "$57.00"},
		Stage:  StageStructural,
	}

	require.True(t, d.Admit(fromPattern))
	require.False(t, d.Admit(fromStructural))

	winner, ok := d.Resolve(fromPattern.Record.Identity())
	require.True(t, ok)
	require.Equal(t, StageStructural, winner.Stage)
}

func TestMergeCandidatesStagePriority(t *testing.T) {
	t.Parallel()

	merged := MergeCandidates([]Candidate{
		{
			Record: ProductRecord{Name: "SkinCanvas Balm", Price: "$58.00", Description: "From markup scan"},
			Stage:  StagePattern,
		},
		{
			Record: ProductRecord{Name: "SkinCanvas Balm Moisturizing Cream", ImageURL: "https://cdn.example.com/mac/balm.png"},
			Stage:  StageStructural,
		},
	})

	require.Equal(t, "SkinCanvas Balm Moisturizing Cream", merged.Name,
		"the structural stage outranks the pattern stage for a contested field")
	require.Equal(t, "$58.00", merged.Price, "uncontested fields fill in from lower stages")
	require.Equal(t, "https://cdn.example.com/mac/balm.png", merged.ImageURL)
	require.Equal(t, "From markup scan", merged.Description)
}

func TestMergeCandidatesAvailabilityUpgradesUnknown(t *testing.T) {
	t.Parallel()

	merged := MergeCandidates([]Candidate{
		{
			Record: ProductRecord{Name: "Eye Cream", Availability: Unknown},
			Stage:  StageStructural,
		},
		{
			Record: ProductRecord{Name: "Eye Cream", Availability: OutOfStock},
			Stage:  StageLinks,
		},
	})
	require.Equal(t, OutOfStock, merged.Availability,
		"a concrete stock signal replaces Unknown regardless of stage")
}
