package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/nginx"
	"github.com/sifan077/redirector/internal/app/redirect"
	"github.com/sifan077/redirector/internal/app/reload"
	"github.com/sifan077/redirector/internal/app/repository"
)

type harness struct {
	store     *memStore
	dir       string
	reloads   atomic.Int32
	reloadOK  atomic.Bool
	engine    RedirectService
	domains   DomainService
	backlinks BacklinkService
	rules     RuleService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: newMemStore(), dir: t.TempDir()}
	h.reloadOK.Store(true)

	reloader := reload.ReloaderFunc(func(context.Context) reload.Result {
		h.reloads.Add(1)
		if h.reloadOK.Load() {
			return reload.Result{Success: true, Message: "signalled"}
		}
		return reload.Result{Message: "proxy unreachable"}
	})

	engine, err := NewRedirectService(RedirectDeps{
		Domains:   memDomains{h.store},
		Backlinks: memBacklinks{h.store},
		Rules:     memRules{h.store},
		Snapshot:  h.store,
		Emitter:   nginx.NewEmitter(nginx.Config{Dir: h.dir}),
		Reloader:  reload.NewCoordinator(reload.CoordinatorConfig{Reloader: reloader}),
		Filter:    NewActiveDomainFilter(64),
	})
	if err != nil {
		t.Fatalf("NewRedirectService: %v", err)
	}
	h.engine = engine
	h.domains = NewDomainService(memDomains{h.store}, engine, nil)
	h.backlinks = NewBacklinkService(memBacklinks{h.store}, memDomains{h.store}, engine, nil)
	h.rules = NewRuleService(memRules{h.store}, memDomains{h.store}, engine, nil, nil)
	return h
}

func (h *harness) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (h *harness) createDomain(t *testing.T, in CreateDomainInput) *model.Domain {
	t.Helper()
	d, status, err := h.domains.CreateDomain(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateDomain(%s): %v", in.Name, err)
	}
	if d.IsActive() && (status == nil || !status.Success) {
		t.Fatalf("expected successful config status, got %+v", status)
	}
	return d
}

func TestRedirectService_PathSpecificScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createDomain(t, CreateDomainInput{
		Name:         "old-example.com",
		TargetURL:    "https://new.example.com",
		RedirectMode: model.ModePathSpecific,
	})
	for _, p := range []string{"/a", "/b"} {
		if _, _, err := h.backlinks.AddBacklink(ctx, "old-example.com", BacklinkInput{LinkingURL: "https://ref.site/x", Target: p}); err != nil {
			t.Fatalf("AddBacklink(%s): %v", p, err)
		}
	}

	got, err := h.engine.TestRedirect(ctx, "old-example.com", "/a", "")
	if err != nil {
		t.Fatalf("TestRedirect: %v", err)
	}
	if !got.Matched || got.TargetURL != "https://new.example.com" || got.StatusCode != 301 {
		t.Fatalf("expected redirect for /a, got %+v", got)
	}

	got, _ = h.engine.TestRedirect(ctx, "old-example.com", "/c", "")
	if got.Matched || got.Type != redirect.KindNone || got.StatusCode != 404 {
		t.Fatalf("expected 404 for /c, got %+v", got)
	}

	homepage := model.UnmatchedHomepage
	if _, _, err := h.domains.UpdateDomain(ctx, "old-example.com", UpdateDomainInput{UnmatchedBehavior: &homepage}); err != nil {
		t.Fatalf("UpdateDomain: %v", err)
	}
	got, _ = h.engine.TestRedirect(ctx, "www.Old-Example.com", "/c", "")
	if !got.Matched || got.Type != redirect.KindHomepage || got.TargetURL != "https://new.example.com" {
		t.Fatalf("expected homepage redirect for /c, got %+v", got)
	}
}

func TestRedirectService_DeactivatedDomainFileRemoved(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createDomain(t, CreateDomainInput{Name: "keep.example", TargetURL: "https://t.example"})
	h.createDomain(t, CreateDomainInput{Name: "drop.example", TargetURL: "https://t.example"})

	if got := h.files(t); len(got) != 2 {
		t.Fatalf("expected 2 config files, got %v", got)
	}

	_, status, err := h.domains.SetStatus(ctx, "drop.example", model.StatusInactive)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if status == nil || !status.Success {
		t.Fatalf("expected successful regeneration, got %+v", status)
	}
	files := h.files(t)
	if len(files) != 1 || files[0] != "keep.example.conf" {
		t.Fatalf("expected only keep.example.conf, got %v", files)
	}

	d, _ := h.engine.TestRedirect(ctx, "drop.example", "/", "")
	if d.Reason != redirect.ReasonDomainInactive {
		t.Fatalf("expected domain_inactive, got %+v", d)
	}

	if _, err := h.domains.DeleteDomain(ctx, "keep.example"); err != nil {
		t.Fatalf("DeleteDomain: %v", err)
	}
	if files := h.files(t); len(files) != 0 {
		t.Fatalf("expected empty config dir, got %v", files)
	}
}

func TestRedirectService_ReloadFailureIsSoft(t *testing.T) {
	h := newHarness(t)
	h.reloadOK.Store(false)

	d, status, err := h.domains.CreateDomain(context.Background(), CreateDomainInput{Name: "soft.example", TargetURL: "https://t.example"})
	if err != nil {
		t.Fatalf("CreateDomain: %v", err)
	}
	if d == nil || status == nil {
		t.Fatalf("expected domain and status, got %v %v", d, status)
	}
	if status.Success || !strings.Contains(status.Message, "reload failed") {
		t.Fatalf("expected soft reload failure, got %+v", status)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "soft.example.conf")); err != nil {
		t.Fatalf("config should still be written: %v", err)
	}
}

func TestRedirectService_EmissionFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := os.RemoveAll(h.dir); err != nil {
		t.Fatal(err)
	}

	_, err := h.engine.RegenerateAndReload(ctx)
	if err == nil {
		t.Fatal("expected emission error for missing directory")
	}

	d, status, err := h.domains.CreateDomain(ctx, CreateDomainInput{Name: "kept.example", TargetURL: "https://t.example"})
	if err != nil {
		t.Fatalf("CreateDomain: %v", err)
	}
	if status == nil || status.Success {
		t.Fatalf("expected failed config status, got %+v", status)
	}
	if _, err := h.domains.GetDomain(ctx, d.Name); err != nil {
		t.Fatalf("domain should be persisted: %v", err)
	}
	if h.reloads.Load() != 0 {
		t.Fatalf("proxy must not be reloaded after a failed emission")
	}
}

func TestRedirectService_RegenerateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createDomain(t, CreateDomainInput{Name: "idem.example", TargetURL: "https://t.example"})

	first, err := os.ReadFile(filepath.Join(h.dir, "idem.example.conf"))
	if err != nil {
		t.Fatal(err)
	}
	res, err := h.engine.RegenerateAndReload(ctx)
	if err != nil {
		t.Fatalf("RegenerateAndReload: %v", err)
	}
	if res.Report.Changed != 0 {
		t.Fatalf("expected no changed files, got %d", res.Report.Changed)
	}
	second, _ := os.ReadFile(filepath.Join(h.dir, "idem.example.conf"))
	if string(first) != string(second) {
		t.Fatal("config content changed between identical cycles")
	}
}

func TestRedirectService_ResolveUsesFilterAndCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createDomain(t, CreateDomainInput{Name: "live.example", TargetURL: "https://t.example"})

	before := h.store.lookups()
	d, err := h.engine.Resolve(ctx, "unknown.example", "/", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Reason != redirect.ReasonDomainNotFound {
		t.Fatalf("expected domain_not_found, got %+v", d)
	}
	if h.store.lookups() != before {
		t.Fatal("unknown host should be rejected by the filter without a lookup")
	}

	d, _ = h.engine.Resolve(ctx, "live.example:8080", "/x", "")
	if !d.Matched || d.TargetURL != "https://t.example" {
		t.Fatalf("expected full redirect, got %+v", d)
	}
	cached := h.store.lookups()
	h.engine.Resolve(ctx, "live.example", "/y", "")
	if h.store.lookups() != cached {
		t.Fatal("second resolve should hit the plan cache")
	}

	if _, _, err := h.rules.CreateRule(ctx, "live.example", RuleInput{SourcePath: "/y", TargetURL: "https://t.example/why", RedirectType: 302}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	d, _ = h.engine.Resolve(ctx, "live.example", "/y", "")
	if d.Type != redirect.KindExact || d.StatusCode != 302 {
		t.Fatalf("plan cache should be dropped after regeneration, got %+v", d)
	}
}

func TestRedirectService_SEOCrawlerBlocked(t *testing.T) {
	h := newHarness(t)
	h.createDomain(t, CreateDomainInput{Name: "crawl.example", TargetURL: "https://t.example"})

	d, _ := h.engine.TestRedirect(context.Background(), "crawl.example", "/", "Mozilla/5.0 (compatible; AhrefsBot/7.0)")
	if d.Matched || d.Reason != redirect.ReasonBlockedCrawler {
		t.Fatalf("expected blocked crawler, got %+v", d)
	}
	d, _ = h.engine.TestRedirect(context.Background(), "crawl.example", "/", "Googlebot/2.1")
	if !d.Matched {
		t.Fatalf("search engines must pass through, got %+v", d)
	}
}

func TestRedirectService_Preview(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createDomain(t, CreateDomainInput{Name: "draft.example", TargetURL: "https://t.example", Status: model.StatusInactive})

	out, err := h.engine.Preview(ctx, "draft.example")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !strings.Contains(string(out), "server_name draft.example www.draft.example;") {
		t.Fatalf("unexpected preview:\n%s", out)
	}
	if files := h.files(t); len(files) != 0 {
		t.Fatalf("preview must not write files, got %v", files)
	}

	_, err = h.engine.Preview(ctx, "nope.example")
	if !errors.Is(err, repository.ErrDomainNotFound) {
		t.Fatalf("expected ErrDomainNotFound, got %v", err)
	}
}
