package nginx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/redirect"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

const (
	defaultSuffix = ".conf"
	tempMarker    = ".tmp-"
	// Temp files younger than this may belong to a concurrent cycle.
	leftoverAge = time.Minute
)

// ErrInvalidFileName is returned when a domain name cannot be used as a file name.
var ErrInvalidFileName = errors.New("nginx: domain name is not a valid file name")

// Config configures an Emitter.
type Config struct {
	Dir    string
	Suffix string
	Listen string
	Logger *zap.Logger
	// Patterns caches compiled rule patterns; nil uses the package default.
	Patterns *redirect.PatternCache
}

// Emitter renders one file per active domain into Dir and removes every other config file there.
type Emitter struct {
	dir      string
	suffix   string
	listen   string
	logger   *zap.Logger
	patterns *redirect.PatternCache
}

// Report summarizes one emission cycle.
type Report struct {
	Domains  []string      `json:"domains"`
	Written  []string      `json:"written"`
	Changed  int           `json:"changed"`
	Removed  []string      `json:"removed"`
	Skipped  int           `json:"skipped_rules"`
	Duration time.Duration `json:"duration"`
}

// NewEmitter returns an emitter for cfg.
func NewEmitter(cfg Config) *Emitter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	suffix := cfg.Suffix
	if suffix == "" {
		suffix = defaultSuffix
	}
	return &Emitter{
		dir:      cfg.Dir,
		suffix:   suffix,
		listen:   cfg.Listen,
		logger:   logger,
		patterns: cfg.Patterns,
	}
}

// Dir returns the configuration directory.
func (e *Emitter) Dir() string { return e.dir }

// FileName returns the config file name for a domain.
func (e *Emitter) FileName(domain string) (string, error) {
	name := domain + e.suffix
	if domain == "" || strings.HasPrefix(domain, ".") || filepath.Base(name) != name || strings.ContainsAny(domain, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, domain)
	}
	return name, nil
}

// RenderDomain compiles and renders a single domain without touching the file system.
func (e *Emitter) RenderDomain(set model.DomainRuleSet) []byte {
	return Render(redirect.Compile(set, e.patterns), e.listen)
}

// Emit writes a file for every active domain in sets, then deletes config files of
// domains that are no longer active. Any I/O failure aborts the cycle.
func (e *Emitter) Emit(sets []model.DomainRuleSet) (*Report, error) {
	start := time.Now()
	info, err := os.Stat(e.dir)
	if err != nil {
		return nil, fmt.Errorf("nginx: config dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("nginx: config dir %s is not a directory", e.dir)
	}

	active := make([]model.DomainRuleSet, 0, len(sets))
	for _, s := range sets {
		if s.Domain.IsActive() {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Domain.Priority != active[j].Domain.Priority {
			return active[i].Domain.Priority > active[j].Domain.Priority
		}
		return active[i].Domain.Name < active[j].Domain.Name
	})

	report := &Report{}
	desired := make(map[string]struct{}, len(active))
	for _, s := range active {
		name, err := e.FileName(s.Domain.Name)
		if err != nil {
			return nil, err
		}
		if _, dup := desired[name]; dup {
			return nil, fmt.Errorf("nginx: duplicate config file %s", name)
		}
		desired[name] = struct{}{}

		plan := redirect.Compile(s, e.patterns)
		content := Render(plan, e.listen)
		target := filepath.Join(e.dir, name)
		if !sameContent(target, content) {
			report.Changed++
		}
		if err := writeAtomic(e.dir, name, content); err != nil {
			return nil, err
		}
		for _, sk := range plan.Skipped {
			e.logger.Warn("rule skipped during emission",
				zap.String("domain", s.Domain.Name),
				zap.Uint("rule_id", sk.RuleID),
				zap.String("source_path", sk.SourcePath),
				zap.String("reason", sk.Reason),
			)
		}
		report.Skipped += len(plan.Skipped)
		report.Domains = append(report.Domains, s.Domain.Name)
		report.Written = append(report.Written, name)
	}

	removed, err := e.removeStale(desired)
	if err != nil {
		return nil, err
	}
	report.Removed = removed
	report.Duration = time.Since(start)

	e.logger.Info("emission cycle complete",
		zap.Int("written", len(report.Written)),
		zap.Int("changed", report.Changed),
		zap.Int("removed", len(report.Removed)),
		zap.Int("skipped_rules", report.Skipped),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (e *Emitter) removeStale(desired map[string]struct{}) ([]string, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, fmt.Errorf("nginx: read config dir: %w", err)
	}
	var removed []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		leftover := strings.HasPrefix(name, ".") && strings.Contains(name, e.suffix+tempMarker)
		if leftover {
			info, err := entry.Info()
			if err != nil || time.Since(info.ModTime()) < leftoverAge {
				continue
			}
		} else {
			if !strings.HasSuffix(name, e.suffix) {
				continue
			}
			if _, keep := desired[name]; keep {
				continue
			}
		}
		if err := os.Remove(filepath.Join(e.dir, name)); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("nginx: remove stale %s: %w", name, err)
		}
		if !leftover {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

// writeAtomic replaces dir/name through a temp file and rename so the proxy never reads a partial file.
func writeAtomic(dir, name string, content []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+tempMarker+"*")
	if err != nil {
		return fmt.Errorf("nginx: create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("nginx: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("nginx: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("nginx: close %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("nginx: chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("nginx: replace %s: %w", name, err)
	}
	return nil
}

func sameContent(path string, content []byte) bool {
	existing, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return xxh3.Hash128(existing) == xxh3.Hash128(content)
}
