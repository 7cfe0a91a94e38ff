package nginx

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/redirect"
)

var (
	pathPool = []string{
		"/", "/a", "/b", "/a/", "/blog", "/blog/2019/hello", "/blog/x", "/shop/shoes/42",
		"/shop/hats/7", "/docs/intro", "/docs", "/old page", `/quote"d`, `/back\slash`,
		"/UPPER", "/upper", "/deep/nested/path/", "/x1", "/x2", "/x3",
	}
	patternPool = []string{
		`^/blog/(\d+)/(.*)$`, `^/blog/`, `^/shop/(\w+)/(\d+)`, `docs`, `^/x[0-9]$`, `(?i)^/upper$`,
		`^/(broken`, `^/deep/(.*)/$`, `^/a$`, `\.php$`, `^/back\\slash$`,
	}
	targetPool = []string{
		"https://new.example.com", "https://new.example.com/landing", "https://t.example.org/$1",
		"https://t.example.org/$2/$1", "https://t.example.org/static", "https://t.example.org/$9",
	}
	agentPool = []string{
		"", "Mozilla/5.0 (X11; Linux x86_64)", "Googlebot/2.1", "Mozilla/5.0 (compatible; AhrefsBot/7.0)",
		"serpstatbot/2.1", "facebookexternalhit/1.1", "curl/8.0",
	}
	codePool = []int{301, 302, 307, 308}
)

func randomRuleSet(r *rand.Rand, id uint) model.DomainRuleSet {
	modes := []string{model.ModeFull, model.ModePathSpecific}
	unmatched := []string{model.UnmatchedNotFound, model.UnmatchedHomepage}
	set := model.DomainRuleSet{Domain: model.Domain{
		ID:                id,
		Name:              fmt.Sprintf("domain-%d.com", id),
		TargetURL:         "https://home.example.net",
		RedirectMode:      modes[r.Intn(len(modes))],
		UnmatchedBehavior: unmatched[r.Intn(len(unmatched))],
		RedirectCode:      []int{301, 302}[r.Intn(2)],
		Status:            model.StatusActive,
	}}
	for i := r.Intn(6); i > 0; i-- {
		set.BacklinkPaths = append(set.BacklinkPaths, pathPool[r.Intn(len(pathPool))])
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := r.Intn(6); i > 0; i-- {
		rule := model.RedirectRule{
			ID:           uint(len(set.Rules) + 1),
			RedirectType: codePool[r.Intn(len(codePool))],
			Priority:     r.Intn(3),
			CreatedAt:    base.Add(time.Duration(r.Intn(5)) * time.Hour),
		}
		switch r.Intn(4) {
		case 0:
			rule.SourcePath = model.CatchAllPath
			rule.TargetURL = targetPool[r.Intn(2)]
		case 1:
			rule.SourcePath = pathPool[r.Intn(len(pathPool))]
			rule.TargetURL = targetPool[r.Intn(2)]
		default:
			rule.IsRegex = true
			rule.SourcePath = patternPool[r.Intn(len(patternPool))]
			rule.TargetURL = targetPool[r.Intn(len(targetPool))]
		}
		set.Rules = append(set.Rules, rule)
	}
	return set
}

func TestRenderedConfigMatchesResolver(t *testing.T) {
	r := rand.New(rand.NewSource(20240601))
	_ = NewEmitter(Config{})
	probes := append([]string{}, pathPool...)
	probes = append(probes, "/nowhere", "/blog/2019/", "/a?x=1", "//a", "/x9")

	for i := 0; i < 300; i++ {
		set := randomRuleSet(r, uint(i+1))
		plan := redirect.Compile(set, nil)
		server := loadServer(t, Render(plan, ""))
		if !server.serves(set.Domain.Name) || !server.serves("www."+set.Domain.Name) {
			t.Fatalf("server_name does not cover %s", set.Domain.Name)
		}

		for _, p := range probes {
			for _, ua := range agentPool {
				want := plan.Resolve(p, ua)
				got := server.request(redirect.NormalizePath(p), ua)
				if got.status != want.StatusCode || got.target != want.TargetURL {
					t.Fatalf("domain %d path %q ua %q: proxy=%v resolver=%d %s\nrules=%+v\nconfig:\n%s",
						i, p, ua, got, want.StatusCode, want.TargetURL, set.Rules, Render(plan, ""))
				}
			}
		}
	}
}
