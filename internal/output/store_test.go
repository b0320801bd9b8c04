package output

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beautydex/harvester/internal/harvest"
)

func readDoc(t *testing.T, path string) document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func product(name, url string) harvest.ProductRecord {
	return harvest.ProductRecord{
		Name:         name,
		ProductURL:   url,
		ImageURL:     "https://sdcdn.io/mac/us/" + name + ".png",
		Availability: harvest.Unknown,
		Category:     "Skincare",
		Brand:        "MAC",
	}
}

func TestPersistFreshFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	s := NewStore(path, nil)

	info := harvest.RunInfo{
		RunID:     "run-1",
		SourceURL: "https://example.com/skincare",
		Stats:     harvest.Stats{CategoriesFound: 3},
	}
	err := s.Persist(context.Background(), info, []harvest.ProductRecord{
		product("serumizer", "https://example.com/product/1"),
		product("balm", "https://example.com/product/2"),
	})
	require.NoError(t, err)

	doc := readDoc(t, path)
	require.Equal(t, "run-1", doc.ScraperInfo.RunID)
	require.Equal(t, 2, doc.ScraperInfo.TotalProducts)
	require.Equal(t, 2, doc.ScraperInfo.NewThisRun)
	require.Equal(t, 3, doc.ScraperInfo.Categories)
	require.Len(t, doc.Products, 2)
}

func TestPersistMergesAcrossRuns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	s := NewStore(path, nil)
	ctx := context.Background()

	first := product("serumizer", "https://example.com/product/1")
	first.Price = "$65.00"
	require.NoError(t, s.Persist(ctx, harvest.RunInfo{RunID: "run-1"}, []harvest.ProductRecord{first}))

	// The second run re-emits the same identity with a different price and
	// adds a new product.
	again := product("serumizer", "https://example.com/product/1")
	again.Price = "$70.00"
	require.NoError(t, s.Persist(ctx, harvest.RunInfo{RunID: "run-2"}, []harvest.ProductRecord{
		again,
		product("balm", "https://example.com/product/2"),
	}))

	doc := readDoc(t, path)
	require.Equal(t, 2, doc.ScraperInfo.TotalProducts)
	require.Equal(t, 1, doc.ScraperInfo.NewThisRun)
	require.Equal(t, "run-2", doc.ScraperInfo.RunID)
	require.Equal(t, "$65.00", doc.Products[0].Price,
		"an already-persisted product is not overwritten by a re-run")
}

func TestPersistDropsImagelessRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	s := NewStore(path, nil)

	imageless := harvest.ProductRecord{Name: "mystery", Availability: harvest.Unknown}
	err := s.Persist(context.Background(), harvest.RunInfo{RunID: "run-1"}, []harvest.ProductRecord{
		imageless,
		product("balm", "https://example.com/product/2"),
	})
	require.NoError(t, err)

	doc := readDoc(t, path)
	require.Len(t, doc.Products, 1)
	require.Equal(t, "balm", doc.Products[0].Name)
}

func TestPersistOverMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	s := NewStore(path, nil)
	err := s.Persist(context.Background(), harvest.RunInfo{RunID: "run-1"}, []harvest.ProductRecord{
		product("serumizer", "https://example.com/product/1"),
	})
	require.NoError(t, err, "a corrupt artifact is rewritten, not fatal")

	doc := readDoc(t, path)
	require.Len(t, doc.Products, 1)
}

func TestPersistCreatesParentDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "products.json")
	s := NewStore(path, nil)
	require.NoError(t, s.Persist(context.Background(), harvest.RunInfo{RunID: "run-1"}, nil))
	require.FileExists(t, path)
}
