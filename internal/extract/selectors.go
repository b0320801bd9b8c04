// Package extract implements the strategy cascade that turns fetched
// documents into product candidates, and the resolver that satisfies the
// mandatory-image invariant.
package extract

import "regexp"

// Ordered selector lists. Within any list, earlier selectors take precedence
// and the first non-empty match wins.

var containerSelectors = []string{
	"div[class*=\"product-item\"]",
	"div[class*=\"product-card\"]",
	"div[class*=\"product-tile\"]",
	"div[class*=\"product\"]",
	"article[class*=\"product\"]",
	"li[class*=\"product\"]",
	"div[class*=\"item\"]",
	"div[class*=\"card\"]",
	"div[class*=\"tile\"]",
	"div[class*=\"grid-item\"]",
}

var nameSelectors = []string{
	"h1", "h2", "h3", "h4", "h5", "h6",
	"[class*=\"product-name\"]",
	"[class*=\"product-title\"]",
	"[class*=\"title\"]",
	"[class*=\"name\"]",
	"a[class*=\"product\"]",
	"span[class*=\"title\"]",
}

var priceSelectors = []string{
	"[class*=\"price\"]",
	"[class*=\"cost\"]",
	"span[class*=\"price\"]",
	"div[class*=\"price\"]",
	"[data-price]",
}

var imageSelectors = []string{
	"img[class*=\"product\"]",
	"img[class*=\"main\"]",
	"img[alt*=\"product\"]",
	"img[src$=\".jpg\"]",
	"img[src$=\".jpeg\"]",
	"img[src$=\".png\"]",
	"img[src$=\".webp\"]",
	"img[data-src]",
	"img[data-lazy]",
	"img",
}

// Image attributes in preference order.
var imageAttrs = []string{"src", "data-src", "data-lazy"}

var linkSelectors = []string{
	"a[href*=\"/product/\"]",
	"a[class*=\"product\"]",
	"a",
}

var descriptionSelectors = []string{
	"[class*=\"description\"]",
	"[class*=\"desc\"]",
	"p",
	"span[class*=\"description\"]",
}

var detailDescriptionSelectors = []string{
	"[class*=\"product-description\"]",
	"[class*=\"description\"]",
	"[class*=\"details\"]",
	"p[class*=\"description\"]",
}

var ingredientSelectors = []string{
	"[class*=\"ingredients\"]",
	"[class*=\"ingredient\"]",
	"div[class*=\"ingredients\"]",
}

var categoryLinkSelectors = []string{
	"nav a[href]",
	"[class*=\"category\"] a[href]",
	"[class*=\"nav\"] a[href]",
	"a[href]",
}

// Stage-3 raw-markup patterns, evaluated when structural selection
// under-extracts. Lower precision than CSS selection, by construction.
var (
	fragmentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<div[^>]*class="[^"]*product[^"]*"[^>]*>(.*?)</div>`),
		regexp.MustCompile(`(?is)<article[^>]*class="[^"]*product[^"]*"[^>]*>(.*?)</article>`),
		regexp.MustCompile(`(?is)<li[^>]*class="[^"]*product[^"]*"[^>]*>(.*?)</li>`),
		regexp.MustCompile(`(?is)<div[^>]*class="[^"]*item[^"]*"[^>]*>(.*?)</div>`),
		regexp.MustCompile(`(?is)<div[^>]*class="[^"]*card[^"]*"[^>]*>(.*?)</div>`),
		regexp.MustCompile(`(?is)<div[^>]*class="[^"]*tile[^"]*"[^>]*>(.*?)</div>`),
	}

	headingPattern     = regexp.MustCompile(`(?i)<h[1-6][^>]*>([^<]+)</h[1-6]>`)
	pricePattern       = regexp.MustCompile(`\$(\d+\.?\d*)`)
	doublePricePattern = regexp.MustCompile(`\$(\d+\.?\d*)\s*\$(\d+\.?\d*)`)
	paragraphPattern   = regexp.MustCompile(`(?i)<p[^>]*>([^<]+)</p>`)
	hrefPattern        = regexp.MustCompile(`(?i)href="([^"]+)"`)
	ratingPattern      = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*stars?`)
	reviewPattern      = regexp.MustCompile(`(?i)\((\d+)\s*reviews?\)`)

	imagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)src="([^"]+\.(?:jpg|jpeg|png|webp))"`),
		regexp.MustCompile(`(?i)data-src="([^"]+\.(?:jpg|jpeg|png|webp))"`),
		regexp.MustCompile(`(?i)data-lazy="([^"]+\.(?:jpg|jpeg|png|webp))"`),
		regexp.MustCompile(`(?i)data-image="([^"]+\.(?:jpg|jpeg|png|webp))"`),
		regexp.MustCompile(`(?i)background-image:\s*url\(["']?([^"')\s]+\.(?:jpg|jpeg|png|webp))["']?\)`),
	}
)
