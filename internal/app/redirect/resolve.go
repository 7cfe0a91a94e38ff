package redirect

import (
	"net/http"
	"strings"
)

// Reason explains a decision that does not redirect.
type Reason string

const (
	ReasonDomainNotFound Reason = "domain_not_found"
	ReasonDomainInactive Reason = "domain_inactive"
	ReasonBlockedCrawler Reason = "blocked_crawler"
	ReasonNoMatch        Reason = "no_match"
)

// Decision is the outcome of resolving one request.
type Decision struct {
	Matched    bool     `json:"matched"`
	Type       Kind     `json:"type"`
	TargetURL  string   `json:"target_url,omitempty"`
	StatusCode int      `json:"status_code"`
	Reason     Reason   `json:"reason,omitempty"`
	Crawler    Category `json:"crawler"`
	Path       string   `json:"path"`
}

// Unresolved builds a non-redirecting decision for a request that never reached a plan.
func Unresolved(reason Reason, rawPath, userAgent string) Decision {
	return Decision{
		Type:       KindNone,
		StatusCode: http.StatusNotFound,
		Reason:     reason,
		Crawler:    Classify(userAgent),
		Path:       NormalizePath(rawPath),
	}
}

// Resolve decides the response for a request path and user agent on the plan's domain.
func (p *Plan) Resolve(rawPath, userAgent string) Decision {
	path := NormalizePath(rawPath)
	crawler := Classify(userAgent)
	if crawler == CategorySEOTool {
		return Decision{Type: KindNone, StatusCode: http.StatusNotFound, Reason: ReasonBlockedCrawler, Crawler: crawler, Path: path}
	}

	if i, ok := p.exact[path]; ok {
		r := p.Exact[i]
		return decide(r.Kind, r.Action, crawler, path)
	}
	for _, r := range p.Regex {
		m := r.re.FindStringSubmatchIndex(path)
		if m == nil {
			continue
		}
		return decide(KindRegex, Action{Status: r.Status, Target: ExpandCaptures(r.Target, path, m)}, crawler, path)
	}
	return decide(p.Fallback.Kind, p.Fallback.Action, crawler, path)
}

func decide(kind Kind, a Action, crawler Category, path string) Decision {
	if !a.IsRedirect() {
		return Decision{Type: KindNone, StatusCode: http.StatusNotFound, Reason: ReasonNoMatch, Crawler: crawler, Path: path}
	}
	return Decision{Matched: true, Type: kind, TargetURL: a.Target, StatusCode: a.Status, Crawler: crawler, Path: path}
}

// ExpandCaptures substitutes $1..$9 in template with the submatches m of subject.
// Groups that did not participate expand to the empty string.
func ExpandCaptures(template, subject string, m []int) string {
	if !strings.Contains(template, "$") {
		return template
	}
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '$' && i+1 < len(template) && template[i+1] >= '0' && template[i+1] <= '9' {
			n := int(template[i+1] - '0')
			i++
			if 2*n+1 < len(m) && m[2*n] >= 0 {
				b.WriteString(subject[m[2*n]:m[2*n+1]])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
