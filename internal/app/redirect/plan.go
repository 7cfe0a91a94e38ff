package redirect

import (
	"net/http"
	"regexp"
	"sort"

	"github.com/sifan077/redirector/internal/app/model"
)

// Kind names the step of the precedence chain that produced a decision.
type Kind string

const (
	KindExact    Kind = "exact"
	KindRegex    Kind = "regex"
	KindCatchAll Kind = "catch-all"
	KindFull     Kind = "full"
	KindHomepage Kind = "homepage"
	KindNone     Kind = "none"
)

// Action is the response a route produces: a redirect, or 404 when Target is empty.
type Action struct {
	Status int
	Target string
}

// NotFound is the action of an unmatched path.
var NotFound = Action{Status: http.StatusNotFound}

// IsRedirect reports whether the action redirects.
func (a Action) IsRedirect() bool {
	return a.Target != "" && a.Status != http.StatusNotFound
}

// ExactRoute answers one normalized path.
type ExactRoute struct {
	Path   string
	Kind   Kind
	Action Action
	RuleID uint
}

// RegexRoute answers paths matching Pattern. Target may reference captures as $1..$9.
type RegexRoute struct {
	Pattern string
	Status  int
	Target  string
	RuleID  uint

	re *regexp.Regexp
}

// SkippedRule is a rule left out of the plan because it cannot be evaluated or emitted.
type SkippedRule struct {
	RuleID     uint
	SourcePath string
	Reason     string
}

// Plan is the compiled decision structure of one domain. Exact routes are tried first,
// then regex routes in order, then the fallback. The resolver and the config renderer
// both walk this structure, so they cannot disagree on precedence.
type Plan struct {
	Domain   string
	Exact    []ExactRoute
	Regex    []RegexRoute
	Fallback ExactRoute
	Skipped  []SkippedRule

	exact map[string]int
}

// Compile builds the plan for a domain from its policy, backlink path set and explicit rules.
func Compile(set model.DomainRuleSet, patterns *PatternCache) *Plan {
	d := set.Domain
	plan := &Plan{Domain: d.Name, exact: make(map[string]int)}

	rules := make([]model.RedirectRule, len(set.Rules))
	copy(rules, set.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.After(rules[j].CreatedAt)
		}
		return rules[i].ID > rules[j].ID
	})

	var catchAll *model.RedirectRule
	for i := range rules {
		r := &rules[i]
		status := r.RedirectType
		if status == 0 {
			status = http.StatusMovedPermanently
		}
		if ValidateRedirectType(status) != nil {
			plan.skip(r, "unsupported redirect type")
			continue
		}
		if ValidateTargetURL(r.TargetURL, r.IsRegex) != nil {
			plan.skip(r, "invalid target url")
			continue
		}

		switch {
		case r.IsCatchAll():
			if catchAll == nil {
				catchAll = r
			}
		case r.IsRegex:
			if !renderable(r.SourcePath) {
				plan.skip(r, "pattern contains control characters")
				continue
			}
			re, err := patterns.Compile(r.SourcePath)
			if err != nil {
				plan.skip(r, "malformed pattern")
				continue
			}
			plan.Regex = append(plan.Regex, RegexRoute{
				Pattern: r.SourcePath,
				Status:  status,
				Target:  r.TargetURL,
				RuleID:  r.ID,
				re:      re,
			})
		default:
			p := NormalizePath(r.SourcePath)
			if !renderable(p) {
				plan.skip(r, "path contains control characters")
				continue
			}
			plan.addExact(ExactRoute{Path: p, Kind: KindExact, Action: Action{Status: status, Target: r.TargetURL}, RuleID: r.ID})
		}
	}

	code := domainCode(d.RedirectCode)
	homepage := Action{Status: code, Target: d.TargetURL}
	switch {
	case catchAll != nil:
		status := catchAll.RedirectType
		if status == 0 {
			status = http.StatusMovedPermanently
		}
		plan.Fallback = ExactRoute{Path: "/", Kind: KindCatchAll, Action: Action{Status: status, Target: catchAll.TargetURL}, RuleID: catchAll.ID}
	case d.RedirectMode == model.ModeFull:
		plan.Fallback = ExactRoute{Path: "/", Kind: KindFull, Action: homepage}
	case d.UnmatchedBehavior == model.UnmatchedHomepage:
		plan.Fallback = ExactRoute{Path: "/", Kind: KindHomepage, Action: homepage}
	default:
		plan.Fallback = ExactRoute{Path: "/", Kind: KindNone, Action: NotFound}
	}

	// Backlink paths sit below explicit rules: a catch-all rule, an exact rule on the
	// same path or any regex matching the path takes the request first.
	if catchAll == nil && d.RedirectMode == model.ModePathSpecific {
		for _, raw := range set.BacklinkPaths {
			p := NormalizePath(raw)
			if !renderable(p) {
				continue
			}
			if _, taken := plan.exact[p]; taken || plan.regexMatches(p) {
				continue
			}
			plan.addExact(ExactRoute{Path: p, Kind: KindExact, Action: homepage})
		}
	}

	sort.Slice(plan.Exact, func(i, j int) bool { return plan.Exact[i].Path < plan.Exact[j].Path })
	for i, r := range plan.Exact {
		plan.exact[r.Path] = i
	}
	return plan
}

func (p *Plan) addExact(r ExactRoute) {
	if _, taken := p.exact[r.Path]; taken {
		return
	}
	p.exact[r.Path] = len(p.Exact)
	p.Exact = append(p.Exact, r)
}

func (p *Plan) regexMatches(path string) bool {
	for _, r := range p.Regex {
		if r.re.MatchString(path) {
			return true
		}
	}
	return false
}

func (p *Plan) skip(r *model.RedirectRule, reason string) {
	p.Skipped = append(p.Skipped, SkippedRule{RuleID: r.ID, SourcePath: r.SourcePath, Reason: reason})
}

func domainCode(code int) int {
	if code == http.StatusFound {
		return http.StatusFound
	}
	return http.StatusMovedPermanently
}
