package nginx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"
)

// This file interprets the subset of nginx configuration that Render produces so the
// emitted files can be checked against Plan.Resolve without a running proxy.

type directive struct {
	name  string
	args  []string
	block []directive
}

func tokenize(t *testing.T, src string) []string {
	t.Helper()
	var tokens []string
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '{' || c == '}' || c == ';' || c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case c == '"':
			var b strings.Builder
			b.WriteByte('"')
			i++
			for ; i < len(src) && src[i] != '"'; i++ {
				if src[i] == '\\' && i+1 < len(src) && (src[i+1] == '"' || src[i+1] == '\\') {
					i++
				}
				b.WriteByte(src[i])
			}
			if i >= len(src) {
				t.Fatalf("unterminated string")
			}
			i++
			tokens = append(tokens, b.String())
		default:
			start := i
			for i < len(src) && !strings.ContainsRune(" \t\r\n{};()", rune(src[i])) {
				i++
			}
			tokens = append(tokens, src[start:i])
		}
	}
	return tokens
}

func parseBlock(t *testing.T, tokens []string, pos int) ([]directive, int) {
	t.Helper()
	var out []directive
	for pos < len(tokens) {
		if tokens[pos] == "}" {
			return out, pos + 1
		}
		d := directive{name: tokens[pos]}
		pos++
		for pos < len(tokens) && tokens[pos] != ";" && tokens[pos] != "{" {
			d.args = append(d.args, tokens[pos])
			pos++
		}
		if pos >= len(tokens) {
			t.Fatalf("directive %s not terminated", d.name)
		}
		if tokens[pos] == "{" {
			d.block, pos = parseBlock(t, tokens, pos+1)
		} else {
			pos++
		}
		out = append(out, d)
	}
	return out, pos
}

func unq(s string) string { return strings.TrimPrefix(s, `"`) }

type simulated struct {
	status int
	target string
}

type simServer struct {
	names    []string
	rewrite  []directive
	exact    map[string]directive
	regex    []directive
	catchAll *directive
	compiled map[string]*regexp.Regexp
	testingT *testing.T
}

func loadServer(t *testing.T, src []byte) *simServer {
	t.Helper()
	top, _ := parseBlock(t, tokenize(t, string(src)), 0)
	if len(top) != 1 || top[0].name != "server" {
		t.Fatalf("expected a single server block, got %d directives", len(top))
	}
	s := &simServer{exact: map[string]directive{}, compiled: map[string]*regexp.Regexp{}, testingT: t}
	for _, d := range top[0].block {
		switch d.name {
		case "server_name":
			s.names = d.args
		case "listen":
		case "location":
			switch {
			case len(d.args) == 2 && d.args[0] == "=":
				s.exact[unq(d.args[1])] = d
			case len(d.args) == 2 && d.args[0] == "~":
				s.regex = append(s.regex, d)
			case len(d.args) == 1 && d.args[0] == "/":
				dd := d
				s.catchAll = &dd
			default:
				t.Fatalf("unsupported location %v", d.args)
			}
		default:
			s.rewrite = append(s.rewrite, d)
		}
	}
	return s
}

func (s *simServer) re(pattern string, fold bool) *regexp.Regexp {
	key := strconv.FormatBool(fold) + pattern
	if re, ok := s.compiled[key]; ok {
		return re
	}
	expr := pattern
	if fold {
		expr = "(?i)" + pattern
	}
	re := regexp.MustCompile(expr)
	s.compiled[key] = re
	return re
}

func (s *simServer) serves(host string) bool {
	for _, n := range s.names {
		if n == host {
			return true
		}
	}
	return false
}

// request evaluates uri (already normalized as $uri) and user agent.
func (s *simServer) request(uri, ua string) simulated {
	vars := map[string]string{"$http_user_agent": ua}
	if res, done := s.runRewrite(s.rewrite, vars); done {
		return res
	}
	if d, ok := s.exact[uri]; ok {
		res, _ := s.runRewrite(d.block, vars)
		return res
	}
	for _, d := range s.regex {
		m := s.re(unq(d.args[1]), false).FindStringSubmatch(uri)
		if m == nil {
			continue
		}
		for i := 1; i < 10; i++ {
			vars["$"+strconv.Itoa(i)] = ""
			if i < len(m) {
				vars["$"+strconv.Itoa(i)] = m[i]
			}
		}
		res, _ := s.runRewrite(d.block, vars)
		return res
	}
	res, _ := s.runRewrite(s.catchAll.block, vars)
	return res
}

func (s *simServer) runRewrite(ds []directive, vars map[string]string) (simulated, bool) {
	for _, d := range ds {
		switch d.name {
		case "set":
			vars[d.args[0]] = unq(d.args[1])
		case "if":
			if len(d.args) != 5 || d.args[0] != "(" || d.args[4] != ")" {
				s.testingT.Fatalf("unsupported if %v", d.args)
			}
			left, op, right := vars[d.args[1]], d.args[2], unq(d.args[3])
			var ok bool
			switch op {
			case "=":
				ok = left == right
			case "~*":
				ok = s.re(right, true).MatchString(left)
			default:
				s.testingT.Fatalf("unsupported operator %s", op)
			}
			if ok {
				if res, done := s.runRewrite(d.block, vars); done {
					return res, true
				}
			}
		case "return":
			code, err := strconv.Atoi(d.args[0])
			if err != nil {
				s.testingT.Fatalf("bad return code %q", d.args[0])
			}
			res := simulated{status: code}
			if len(d.args) > 1 {
				res.target = expandVars(unq(d.args[1]), vars)
			}
			return res, true
		default:
			s.testingT.Fatalf("unsupported directive %s", d.name)
		}
	}
	return simulated{}, false
}

var varRef = regexp.MustCompile(`\$[1-9]`)

func expandVars(s string, vars map[string]string) string {
	return varRef.ReplaceAllStringFunc(s, func(ref string) string { return vars[ref] })
}

func (r simulated) String() string { return fmt.Sprintf("%d %s", r.status, r.target) }
