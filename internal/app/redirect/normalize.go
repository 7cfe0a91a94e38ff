package redirect

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/sifan077/redirector/internal/app/model"
)

// ValidationError reports a structurally invalid field handed to the engine.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var domainLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// NormalizeHost lower-cases a host and strips scheme, port, path, trailing dot and the www. prefix.
func NormalizeHost(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	if host, _, err := net.SplitHostPort(h); err == nil {
		h = host
	}
	h = strings.TrimSuffix(h, ".")
	return strings.TrimPrefix(h, "www.")
}

// ValidateDomainName checks a canonical (already normalized) domain name.
func ValidateDomainName(name string) error {
	if name == "" {
		return invalid("name", "is required")
	}
	if len(name) > 253 {
		return invalid("name", "must be at most 253 characters")
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return invalid("name", "%q is not a registrable domain", name)
	}
	for _, l := range labels {
		if !domainLabel.MatchString(l) {
			return invalid("name", "%q is not a valid domain name", name)
		}
	}
	return nil
}

// NormalizePath canonicalizes a request or rule path the way the edge proxy computes $uri:
// query and fragment dropped, percent-decoded, leading slash enforced, slashes merged and
// dot segments resolved. A trailing slash is kept.
func NormalizePath(raw string) string {
	p := raw
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	// A trailing dot segment names a directory, so it keeps the slash like "/dir/" does.
	last := p[strings.LastIndex(p, "/")+1:]
	trailing := len(p) > 1 && (last == "" || last == "." || last == "..")
	p = path.Clean(p)
	if trailing && p != "/" {
		p += "/"
	}
	return p
}

// PathFromTarget extracts the domain-relative path from a backlink target that is
// either an absolute URL on the domain or a bare path.
func PathFromTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("url_path", "is required")
	}
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", invalid("url_path", "malformed url %q", raw)
		}
		raw = u.EscapedPath()
	}
	p := NormalizePath(raw)
	if !renderable(p) {
		return "", invalid("url_path", "contains control characters")
	}
	return p, nil
}

// BacklinkPath validates one backlink record for domain and returns the path it links to.
// An absolute target must point at the domain itself.
func BacklinkPath(domain, linkingURL, target string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(linkingURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalid("linking_url", "must be an absolute http(s) url")
	}
	target = strings.TrimSpace(target)
	if strings.Contains(target, "://") {
		t, err := url.Parse(target)
		if err != nil {
			return "", invalid("url_path", "malformed url %q", target)
		}
		if NormalizeHost(t.Host) != domain {
			return "", invalid("url_path", "%q does not point at %s", target, domain)
		}
	}
	return PathFromTarget(target)
}

// ValidateTargetURL checks that raw is an absolute http(s) URL the proxy can emit verbatim.
// Regex rule targets may reference capture groups as $1..$9.
func ValidateTargetURL(raw string, allowCaptures bool) error {
	if raw == "" {
		return invalid("target_url", "is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return invalid("target_url", "malformed url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("target_url", "scheme must be http or https")
	}
	if u.Host == "" {
		return invalid("target_url", "host is required")
	}
	if !renderable(raw) || strings.ContainsAny(raw, " \t") {
		return invalid("target_url", "contains whitespace or control characters")
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] != '$' {
			continue
		}
		if !allowCaptures || i+1 >= len(raw) || raw[i+1] < '1' || raw[i+1] > '9' {
			return invalid("target_url", "'$' is only allowed as a capture reference $1..$9 in regex rules")
		}
	}
	return nil
}

// ValidateRedirectType checks an explicit rule's status code.
func ValidateRedirectType(code int) error {
	switch code {
	case 301, 302, 307, 308:
		return nil
	}
	return invalid("redirect_type", "must be one of 301, 302, 307, 308")
}

// ValidateDomain checks a domain policy before it is written.
func ValidateDomain(d *model.Domain) error {
	if err := ValidateDomainName(d.Name); err != nil {
		return err
	}
	if err := ValidateTargetURL(d.TargetURL, false); err != nil {
		return err
	}
	switch d.RedirectMode {
	case model.ModeFull, model.ModePathSpecific:
	default:
		return invalid("redirect_mode", "must be %q or %q", model.ModeFull, model.ModePathSpecific)
	}
	switch d.UnmatchedBehavior {
	case model.UnmatchedNotFound, model.UnmatchedHomepage:
	default:
		return invalid("unmatched_behavior", "must be %q or %q", model.UnmatchedNotFound, model.UnmatchedHomepage)
	}
	switch d.Status {
	case model.StatusActive, model.StatusInactive:
	default:
		return invalid("status", "must be %q or %q", model.StatusActive, model.StatusInactive)
	}
	if d.RedirectCode != 301 && d.RedirectCode != 302 {
		return invalid("redirect_code", "must be 301 or 302")
	}
	return nil
}

// ValidateRule checks an explicit rule and normalizes its source path in place.
func ValidateRule(r *model.RedirectRule, patterns *PatternCache) error {
	if r.SourcePath == "" {
		return invalid("source_path", "is required")
	}
	if r.IsRegex {
		if !renderable(r.SourcePath) || strings.Contains(r.SourcePath, "\n") {
			return invalid("source_path", "contains control characters")
		}
		if _, err := patterns.Compile(r.SourcePath); err != nil {
			return invalid("source_path", "malformed pattern: %v", err)
		}
	} else if r.SourcePath != model.CatchAllPath {
		p := NormalizePath(r.SourcePath)
		if !renderable(p) {
			return invalid("source_path", "contains control characters")
		}
		r.SourcePath = p
	}
	if r.RedirectType == 0 {
		r.RedirectType = 301
	}
	if err := ValidateRedirectType(r.RedirectType); err != nil {
		return err
	}
	return ValidateTargetURL(r.TargetURL, r.IsRegex)
}

// renderable reports whether s can be written into a quoted proxy directive.
func renderable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return false
		}
	}
	return true
}
