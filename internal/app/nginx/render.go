package nginx

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sifan077/redirector/internal/app/redirect"
)

const header = "# Managed by redirector. Manual edits are overwritten on the next emission cycle.\n"

// Render writes the server block implementing plan. Crawler conditionals run in the
// server rewrite phase, ahead of location selection; exact locations win over regex
// locations, regex locations are tried in file order, and "location /" catches the rest.
// This mirrors Plan.Resolve.
func Render(plan *redirect.Plan, listen string) []byte {
	if listen == "" {
		listen = "80"
	}
	var b bytes.Buffer
	b.WriteString(header)
	fmt.Fprintf(&b, "# domain: %s\n", plan.Domain)
	for _, s := range plan.Skipped {
		fmt.Fprintf(&b, "# skipped rule %d: %s\n", s.RuleID, s.Reason)
	}
	b.WriteString("server {\n")
	fmt.Fprintf(&b, "    listen %s;\n", listen)
	fmt.Fprintf(&b, "    server_name %s www.%s;\n\n", plan.Domain, plan.Domain)

	fmt.Fprintf(&b, "    set $crawler_class %s;\n", quote(string(redirect.CategoryOther)))
	fmt.Fprintf(&b, "    if ($http_user_agent ~* %s) {\n", quote(redirect.SearchEnginePattern()))
	fmt.Fprintf(&b, "        set $crawler_class %s;\n    }\n", quote(string(redirect.CategorySearchEngine)))
	fmt.Fprintf(&b, "    if ($http_user_agent ~* %s) {\n", quote(redirect.SEOToolPattern()))
	fmt.Fprintf(&b, "        set $crawler_class %s;\n    }\n", quote(string(redirect.CategorySEOTool)))
	fmt.Fprintf(&b, "    if ($crawler_class = %s) {\n        return 404;\n    }\n", quote(string(redirect.CategorySEOTool)))

	for _, r := range plan.Exact {
		fmt.Fprintf(&b, "\n    location = %s {\n", quote(r.Path))
		writeAction(&b, r.Action)
		b.WriteString("    }\n")
	}
	for _, r := range plan.Regex {
		fmt.Fprintf(&b, "\n    location ~ %s {\n", quote(r.Pattern))
		writeAction(&b, redirect.Action{Status: r.Status, Target: r.Target})
		b.WriteString("    }\n")
	}
	b.WriteString("\n    location / {\n")
	writeAction(&b, plan.Fallback.Action)
	b.WriteString("    }\n}\n")
	return b.Bytes()
}

func writeAction(b *bytes.Buffer, a redirect.Action) {
	if !a.IsRedirect() {
		b.WriteString("        return 404;\n")
		return
	}
	fmt.Fprintf(b, "        return %d %s;\n", a.Status, quote(a.Target))
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoter.Replace(s) + `"`
}
