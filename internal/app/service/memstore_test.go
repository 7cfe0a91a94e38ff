package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/repository"
)

// memStore is an in-memory stand-in for the relational store shared by the repository views below.
type memStore struct {
	mu        sync.Mutex
	nextID    uint
	clock     time.Time
	domains   map[uint]model.Domain
	backlinks map[uint]model.Backlink
	rules     map[uint]model.RedirectRule

	nameLookups int
}

func newMemStore() *memStore {
	return &memStore{
		clock:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		domains:   make(map[uint]model.Domain),
		backlinks: make(map[uint]model.Backlink),
		rules:     make(map[uint]model.RedirectRule),
	}
}

func (s *memStore) next() (uint, time.Time) {
	s.nextID++
	s.clock = s.clock.Add(time.Second)
	return s.nextID, s.clock
}

func (s *memStore) lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nameLookups
}

func (s *memStore) LoadActive(ctx context.Context) ([]model.DomainRuleSet, error) {
	active, _ := memDomains{s}.ListActive(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	var rules []model.RedirectRule
	for _, r := range s.rules {
		rules = append(rules, r)
	}
	sortRules(rules)
	return model.AssembleRuleSets(active, func(yield func(uint, string)) {
		for _, d := range active {
			for _, p := range s.pathSetLocked(d.ID) {
				yield(d.ID, p)
			}
		}
	}, rules), nil
}

func (s *memStore) pathSetLocked(domainID uint) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range s.backlinks {
		if b.DomainID != domainID {
			continue
		}
		if _, ok := seen[b.URLPath]; ok {
			continue
		}
		seen[b.URLPath] = struct{}{}
		out = append(out, b.URLPath)
	}
	sort.Strings(out)
	return out
}

func sortRules(rules []model.RedirectRule) {
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

type memDomains struct{ *memStore }

func (m memDomains) Create(_ context.Context, d *model.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.domains {
		if existing.Name == d.Name {
			return repository.ErrDuplicateDomain
		}
	}
	d.ID, d.CreatedAt = m.next()
	d.UpdatedAt = d.CreatedAt
	m.domains[d.ID] = *d
	return nil
}

func (m memDomains) GetByID(_ context.Context, id uint) (*model.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.domains[id]
	if !ok {
		return nil, repository.ErrDomainNotFound
	}
	return &d, nil
}

func (m memDomains) GetByName(_ context.Context, name string) (*model.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nameLookups++
	for _, d := range m.domains {
		if d.Name == name {
			return &d, nil
		}
	}
	return nil, repository.ErrDomainNotFound
}

func (m memDomains) sorted(filter func(model.Domain) bool) []model.Domain {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Domain
	for _, d := range m.domains {
		if filter(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (m memDomains) List(_ context.Context, limit, offset int) ([]model.Domain, error) {
	all := m.sorted(func(model.Domain) bool { return true })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m memDomains) ListActive(context.Context) ([]model.Domain, error) {
	return m.sorted(func(d model.Domain) bool { return d.IsActive() }), nil
}

func (m memDomains) Update(_ context.Context, d *model.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.domains[d.ID]; !ok {
		return repository.ErrDomainNotFound
	}
	_, d.UpdatedAt = m.next()
	m.domains[d.ID] = *d
	return nil
}

func (m memDomains) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.domains[id]; !ok {
		return repository.ErrDomainNotFound
	}
	delete(m.domains, id)
	for bid, b := range m.backlinks {
		if b.DomainID == id {
			delete(m.backlinks, bid)
		}
	}
	for rid, r := range m.rules {
		if r.DomainID == id {
			delete(m.rules, rid)
		}
	}
	return nil
}

type memBacklinks struct{ *memStore }

func (m memBacklinks) Create(_ context.Context, b *model.Backlink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID, b.CreatedAt = m.next()
	m.backlinks[b.ID] = *b
	return nil
}

func (m memBacklinks) CreateBatch(ctx context.Context, batch []model.Backlink) error {
	for i := range batch {
		if err := m.Create(ctx, &batch[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m memBacklinks) GetByID(_ context.Context, id uint) (*model.Backlink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.backlinks[id]
	if !ok {
		return nil, repository.ErrBacklinkNotFound
	}
	return &b, nil
}

func (m memBacklinks) ListByDomain(_ context.Context, domainID uint, _, _ int) ([]model.Backlink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Backlink
	for _, b := range m.backlinks {
		if b.DomainID == domainID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memBacklinks) PathSet(_ context.Context, domainID uint) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pathSetLocked(domainID), nil
}

func (m memBacklinks) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.backlinks[id]; !ok {
		return repository.ErrBacklinkNotFound
	}
	delete(m.backlinks, id)
	return nil
}

type memRules struct{ *memStore }

func (m memRules) Create(_ context.Context, r *model.RedirectRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID, r.CreatedAt = m.next()
	r.UpdatedAt = r.CreatedAt
	m.rules[r.ID] = *r
	return nil
}

func (m memRules) GetByID(_ context.Context, id uint) (*model.RedirectRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, repository.ErrRuleNotFound
	}
	return &r, nil
}

func (m memRules) FindExact(_ context.Context, domainID uint, sourcePath string) (*model.RedirectRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.DomainID == domainID && !r.IsRegex && r.SourcePath == sourcePath {
			return &r, nil
		}
	}
	return nil, repository.ErrRuleNotFound
}

func (m memRules) ListByDomain(_ context.Context, domainID uint) ([]model.RedirectRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RedirectRule
	for _, r := range m.rules {
		if r.DomainID == domainID {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out, nil
}

func (m memRules) Update(_ context.Context, r *model.RedirectRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[r.ID]; !ok {
		return repository.ErrRuleNotFound
	}
	_, r.UpdatedAt = m.next()
	m.rules[r.ID] = *r
	return nil
}

func (m memRules) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return repository.ErrRuleNotFound
	}
	delete(m.rules, id)
	return nil
}
