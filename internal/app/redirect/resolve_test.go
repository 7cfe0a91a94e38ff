package redirect

import (
	"testing"
	"time"

	"github.com/sifan077/redirector/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oldExample(unmatched string) model.DomainRuleSet {
	return model.DomainRuleSet{
		Domain: model.Domain{
			ID:                1,
			Name:              "old-example.com",
			TargetURL:         "https://new.example.com",
			RedirectMode:      model.ModePathSpecific,
			UnmatchedBehavior: unmatched,
			RedirectCode:      301,
			Status:            model.StatusActive,
		},
		BacklinkPaths: []string{"/a", "/b"},
	}
}

func TestResolvePathSpecificNotFound(t *testing.T) {
	plan := Compile(oldExample(model.UnmatchedNotFound), nil)

	d := plan.Resolve("/a", "")
	assert.True(t, d.Matched)
	assert.Equal(t, KindExact, d.Type)
	assert.Equal(t, "https://new.example.com", d.TargetURL)
	assert.Equal(t, 301, d.StatusCode)

	d = plan.Resolve("/c", "")
	assert.False(t, d.Matched)
	assert.Equal(t, KindNone, d.Type)
	assert.Equal(t, 404, d.StatusCode)
	assert.Equal(t, ReasonNoMatch, d.Reason)
}

func TestResolvePathSpecificHomepage(t *testing.T) {
	plan := Compile(oldExample(model.UnmatchedHomepage), nil)

	d := plan.Resolve("/c", "")
	assert.True(t, d.Matched)
	assert.Equal(t, KindHomepage, d.Type)
	assert.Equal(t, "https://new.example.com", d.TargetURL)

	d = plan.Resolve("/b?utm=1", "")
	assert.Equal(t, KindExact, d.Type)
}

func TestResolveFullMode(t *testing.T) {
	set := oldExample(model.UnmatchedNotFound)
	set.Domain.RedirectMode = model.ModeFull
	set.Domain.RedirectCode = 302
	plan := Compile(set, nil)

	for _, p := range []string{"/", "/a", "/anything/else", ""} {
		d := plan.Resolve(p, "")
		assert.True(t, d.Matched, p)
		assert.Equal(t, KindFull, d.Type, p)
		assert.Equal(t, 302, d.StatusCode, p)
	}
	assert.Empty(t, plan.Exact)
}

func TestResolvePrecedence(t *testing.T) {
	now := time.Now()
	set := oldExample(model.UnmatchedNotFound)
	set.BacklinkPaths = []string{"/a", "/blog/one", "/docs"}
	set.Rules = []model.RedirectRule{
		{ID: 1, SourcePath: "/docs", TargetURL: "https://docs.example.com", RedirectType: 308},
		{ID: 2, SourcePath: "^/blog/(.*)$", TargetURL: "https://new.example.com/posts/$1", RedirectType: 302, IsRegex: true, Priority: 1},
		{ID: 3, SourcePath: "^/blog/", TargetURL: "https://new.example.com/low", RedirectType: 301, IsRegex: true, Priority: 5},
		{ID: 4, SourcePath: "^/shop/(\\w+)/(\\d+)", TargetURL: "https://shop.example.com/$2/$1", IsRegex: true, CreatedAt: now},
	}
	plan := Compile(set, nil)

	tests := []struct {
		path   string
		kind   Kind
		target string
		status int
	}{
		{"/docs", KindExact, "https://docs.example.com", 308},
		{"/a", KindExact, "https://new.example.com", 301},
		{"/blog/one", KindRegex, "https://new.example.com/low", 301},
		{"/shop/shoes/42", KindRegex, "https://shop.example.com/42/shoes", 301},
		{"/nothing", KindNone, "", 404},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			d := plan.Resolve(tt.path, "Mozilla/5.0")
			assert.Equal(t, tt.kind, d.Type)
			assert.Equal(t, tt.target, d.TargetURL)
			assert.Equal(t, tt.status, d.StatusCode)
		})
	}

	// The regex-shadowed backlink path must not be compiled as an exact route.
	for _, r := range plan.Exact {
		assert.NotEqual(t, "/blog/one", r.Path)
	}
}

func TestResolveRegexPriority(t *testing.T) {
	set := oldExample(model.UnmatchedNotFound)
	set.Rules = []model.RedirectRule{
		{ID: 1, SourcePath: "^/p/", TargetURL: "https://low.example.com", IsRegex: true, Priority: 1},
		{ID: 2, SourcePath: "^/p/x", TargetURL: "https://high.example.com", IsRegex: true, Priority: 10},
	}
	d := Compile(set, nil).Resolve("/p/x", "")
	assert.Equal(t, "https://high.example.com", d.TargetURL)
}

func TestResolveExactTieBreaksByNewest(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	set := oldExample(model.UnmatchedNotFound)
	set.Rules = []model.RedirectRule{
		{ID: 1, SourcePath: "/x", TargetURL: "https://old.example.com", CreatedAt: older},
		{ID: 2, SourcePath: "/x/", TargetURL: "https://other.example.com", CreatedAt: older},
		{ID: 3, SourcePath: "x", TargetURL: "https://new.example.com", CreatedAt: time.Now()},
	}
	d := Compile(set, nil).Resolve("/x", "")
	assert.Equal(t, "https://new.example.com", d.TargetURL)
}

func TestResolveCatchAll(t *testing.T) {
	set := oldExample(model.UnmatchedNotFound)
	set.Rules = []model.RedirectRule{
		{ID: 1, SourcePath: model.CatchAllPath, TargetURL: "https://catch.example.com", RedirectType: 307},
		{ID: 2, SourcePath: "/keep", TargetURL: "https://keep.example.com"},
	}
	plan := Compile(set, nil)

	d := plan.Resolve("/a", "")
	assert.Equal(t, KindCatchAll, d.Type)
	assert.Equal(t, "https://catch.example.com", d.TargetURL)
	assert.Equal(t, 307, d.StatusCode)

	d = plan.Resolve("/keep", "")
	assert.Equal(t, KindExact, d.Type)
	assert.Equal(t, "https://keep.example.com", d.TargetURL)
}

func TestResolveSkipsMalformedPatterns(t *testing.T) {
	set := oldExample(model.UnmatchedNotFound)
	set.Rules = []model.RedirectRule{
		{ID: 7, SourcePath: "^/(broken", TargetURL: "https://broken.example.com", IsRegex: true, Priority: 100},
		{ID: 8, SourcePath: "^/c", TargetURL: "https://ok.example.com", IsRegex: true},
	}
	plan := Compile(set, nil)
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, uint(7), plan.Skipped[0].RuleID)

	d := plan.Resolve("/c", "")
	assert.Equal(t, "https://ok.example.com", d.TargetURL)
}

func TestResolveCrawlerOverride(t *testing.T) {
	plan := Compile(oldExample(model.UnmatchedHomepage), nil)

	d := plan.Resolve("/a", "Mozilla/5.0 (compatible; AhrefsBot/7.0; +http://ahrefs.com/robot/)")
	assert.False(t, d.Matched)
	assert.Equal(t, 404, d.StatusCode)
	assert.Equal(t, ReasonBlockedCrawler, d.Reason)
	assert.Equal(t, CategorySEOTool, d.Crawler)

	d = plan.Resolve("/a", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	assert.True(t, d.Matched)
	assert.Equal(t, CategorySearchEngine, d.Crawler)
}

func TestExpandCaptures(t *testing.T) {
	subject := "/a/b"
	m := []int{0, 4, 1, 2, -1, -1}
	assert.Equal(t, "https://x.example.com/a/", ExpandCaptures("https://x.example.com/$1/$2", subject, m))
	assert.Equal(t, "https://x.example.com/", ExpandCaptures("https://x.example.com/$7", subject, m))
	assert.Equal(t, "https://x.example.com/plain", ExpandCaptures("https://x.example.com/plain", subject, m))
}
