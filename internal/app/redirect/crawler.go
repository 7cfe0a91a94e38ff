package redirect

import (
	"regexp"
	"strings"
)

// Category is the crawler class of a user agent.
type Category string

const (
	CategorySearchEngine Category = "search_engine"
	CategorySEOTool      Category = "seo_tool"
	CategoryOther        Category = "other"
)

// SEOTools are backlink/SEO crawlers that are always answered with 404.
var SEOTools = []string{
	"AhrefsBot",
	"MJ12bot",
	"SemrushBot",
	"DotBot",
	"BLEXBot",
	"DataForSeoBot",
	"Screaming Frog",
	"Serpstatbot",
	"MegaIndex",
	"SEOkicks",
	"Barkrowler",
	"linkdexbot",
}

// SearchEngines are indexing and social crawlers that always see the real decision.
var SearchEngines = []string{
	"Googlebot",
	"Bingbot",
	"DuckDuckBot",
	"YandexBot",
	"Facebot",
	"Twitterbot",
	"LinkedInBot",
	"Applebot",
	"Baiduspider",
	"facebookexternalhit",
}

// Classify matches ua against the SEO list first, then the search-engine list,
// by case-insensitive substring containment.
func Classify(ua string) Category {
	if ua == "" {
		return CategoryOther
	}
	lower := strings.ToLower(ua)
	if containsAny(lower, SEOTools) {
		return CategorySEOTool
	}
	if containsAny(lower, SearchEngines) {
		return CategorySearchEngine
	}
	return CategoryOther
}

func containsAny(lower string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// SEOToolPattern is the case-insensitive alternation equivalent to the SEO list.
func SEOToolPattern() string { return alternation(SEOTools) }

// SearchEnginePattern is the case-insensitive alternation equivalent to the search-engine list.
func SearchEnginePattern() string { return alternation(SearchEngines) }

func alternation(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return "(" + strings.Join(quoted, "|") + ")"
}
