package handler

import (
	"context"
	"sync"

	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/redirect"
	"github.com/sifan077/redirector/internal/app/repository"
	"github.com/sifan077/redirector/internal/app/service"
)

var okStatus = &service.ConfigStatus{Success: true, Message: "1 domain configs written (1 changed), 0 removed; signalled"}

type fakeDomains struct {
	service.DomainService
	createFn func(ctx context.Context, input service.CreateDomainInput) (*model.Domain, *service.ConfigStatus, error)
	getFn    func(ctx context.Context, name string) (*model.Domain, error)
	statusFn func(ctx context.Context, name, status string) (*model.Domain, *service.ConfigStatus, error)
}

func (f *fakeDomains) CreateDomain(ctx context.Context, input service.CreateDomainInput) (*model.Domain, *service.ConfigStatus, error) {
	return f.createFn(ctx, input)
}

func (f *fakeDomains) GetDomain(ctx context.Context, name string) (*model.Domain, error) {
	if f.getFn == nil {
		return nil, repository.ErrDomainNotFound
	}
	return f.getFn(ctx, name)
}

func (f *fakeDomains) SetStatus(ctx context.Context, name, status string) (*model.Domain, *service.ConfigStatus, error) {
	return f.statusFn(ctx, name, status)
}

type fakeRules struct {
	service.RuleService
	createFn func(ctx context.Context, domain string, input service.RuleInput) (*model.RedirectRule, *service.ConfigStatus, error)
	deleteFn func(ctx context.Context, id uint) (*service.ConfigStatus, error)
}

func (f *fakeRules) CreateRule(ctx context.Context, domain string, input service.RuleInput) (*model.RedirectRule, *service.ConfigStatus, error) {
	return f.createFn(ctx, domain, input)
}

func (f *fakeRules) DeleteRule(ctx context.Context, id uint) (*service.ConfigStatus, error) {
	return f.deleteFn(ctx, id)
}

type fakeBacklinks struct {
	service.BacklinkService
	importFn func(ctx context.Context, domain string, rows []service.BacklinkInput) (*service.ImportResult, *service.ConfigStatus, error)
}

func (f *fakeBacklinks) ImportBacklinks(ctx context.Context, domain string, rows []service.BacklinkInput) (*service.ImportResult, *service.ConfigStatus, error) {
	return f.importFn(ctx, domain, rows)
}

type fakeRedirects struct {
	service.RedirectService
	testFn    func(ctx context.Context, domain, path, userAgent string) (redirect.Decision, error)
	resolveFn func(ctx context.Context, host, path, userAgent string) (redirect.Decision, error)
	previewFn func(ctx context.Context, domain string) ([]byte, error)
	regenFn   func(ctx context.Context) (*service.RegenerateResult, error)
}

func (f *fakeRedirects) TestRedirect(ctx context.Context, domain, path, userAgent string) (redirect.Decision, error) {
	return f.testFn(ctx, domain, path, userAgent)
}

func (f *fakeRedirects) Resolve(ctx context.Context, host, path, userAgent string) (redirect.Decision, error) {
	return f.resolveFn(ctx, host, path, userAgent)
}

func (f *fakeRedirects) Preview(ctx context.Context, domain string) ([]byte, error) {
	return f.previewFn(ctx, domain)
}

func (f *fakeRedirects) RegenerateAndReload(ctx context.Context) (*service.RegenerateResult, error) {
	return f.regenFn(ctx)
}

type publishedHit struct {
	domain, ip, ua string
	decision       redirect.Decision
}

type recordingPublisher struct {
	mu   sync.Mutex
	hits []publishedHit
	done chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{done: make(chan struct{}, 16)}
}

func (p *recordingPublisher) Publish(domain, ip, ua string, d redirect.Decision) error {
	p.mu.Lock()
	p.hits = append(p.hits, publishedHit{domain: domain, ip: ip, ua: ua, decision: d})
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}
