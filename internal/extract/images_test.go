package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beautydex/harvester/internal/harvest"
)

// stubProber answers Exists from a fixed set and records probe order.
type stubProber struct {
	exists map[string]bool
	probed []string
}

func (p *stubProber) Exists(_ context.Context, rawURL string) bool {
	p.probed = append(p.probed, rawURL)
	return p.exists[rawURL]
}

func testResolver(t *testing.T, prober harvest.Prober) *ImageResolver {
	t.Helper()
	e := testExtractor(t, nil)
	return NewImageResolver(ImageConfig{
		Templates: []string{
			"https://sdcdn.io/mac/us/mac_sku_%s_1x1_0.png",
		},
		FallbackURL: "https://sdcdn.io/mac/us/mac_sku_SKPY01_1x1_0.png",
	}, e, prober, nil)
}

func TestResolveKeepsDiscoveredImage(t *testing.T) {
	t.Parallel()

	r := testResolver(t, &stubProber{})
	rec := harvest.ProductRecord{
		Name:     "Serumizer",
		ImageURL: "https://sdcdn.io/mac/us/serumizer.png",
	}
	src := r.Resolve(context.Background(), &rec, harvest.Page{})
	require.Equal(t, harvest.ImageDirect, src)
	require.Equal(t, "https://sdcdn.io/mac/us/serumizer.png", rec.ImageURL)
}

func TestResolveDirectFromDetailPage(t *testing.T) {
	t.Parallel()

	r := testResolver(t, &stubProber{})
	detail := page(`<html><body>
		<img class="product-hero" src="https://sdcdn.io/mac/us/balm.png">
	</body></html>`)

	rec := harvest.ProductRecord{Name: "SkinCanvas Balm"}
	src := r.Resolve(context.Background(), &rec, detail)
	require.Equal(t, harvest.ImageDirect, src)
	require.Equal(t, "https://sdcdn.io/mac/us/balm.png", rec.ImageURL)
}

func TestResolveContextWindow(t *testing.T) {
	t.Parallel()

	r := testResolver(t, &stubProber{})
	detail := page(`<html><body>
		<div style="background-image: url('https://sdcdn.io/mac/us/eye-cream.jpg')">
			Fast Response Eye Cream
		</div>
	</body></html>`)

	rec := harvest.ProductRecord{Name: "Fast Response Eye Cream"}
	src := r.Resolve(context.Background(), &rec, detail)
	require.Equal(t, harvest.ImageContext, src)
	require.Equal(t, "https://sdcdn.io/mac/us/eye-cream.jpg", rec.ImageURL)
}

func TestResolveConstructedFromTemplates(t *testing.T) {
	t.Parallel()

	prober := &stubProber{exists: map[string]bool{
		"https://sdcdn.io/mac/us/mac_sku_fix-spray_1x1_0.png": true,
	}}
	r := testResolver(t, prober)

	rec := harvest.ProductRecord{Name: "Fix Spray"}
	src := r.Resolve(context.Background(), &rec, harvest.Page{})
	require.Equal(t, harvest.ImageConstructed, src)
	require.Equal(t, "https://sdcdn.io/mac/us/mac_sku_fix-spray_1x1_0.png", rec.ImageURL)
	require.Equal(t, "https://sdcdn.io/mac/us/mac_sku_fix-spray_1x1_0.png", prober.probed[0],
		"the hyphenated slug is probed first")
}

func TestResolveFallbackRequiresDetailPage(t *testing.T) {
	t.Parallel()

	r := testResolver(t, &stubProber{})

	withDetail := harvest.ProductRecord{Name: "Mystery Product"}
	src := r.Resolve(context.Background(), &withDetail, page(`<html><body>no media here</body></html>`))
	require.Equal(t, harvest.ImageFallback, src)
	require.Equal(t, "https://sdcdn.io/mac/us/mac_sku_SKPY01_1x1_0.png", withDetail.ImageURL)

	withoutDetail := harvest.ProductRecord{Name: "Mystery Product"}
	src = r.Resolve(context.Background(), &withoutDetail, harvest.Page{})
	require.Equal(t, harvest.ImageNone, src,
		"without a detail page the record stays imageless rather than faked")
	require.Empty(t, withoutDetail.ImageURL)
}

func TestSlugVariants(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]string{"prep-prime-fix", "prep_prime_fix", "prep"},
		slugVariants("Prep + Prime Fix+!"))
	require.Equal(t, []string{"serumizer"}, slugVariants("Serumizer"))
	require.Nil(t, slugVariants("™®"))
}
