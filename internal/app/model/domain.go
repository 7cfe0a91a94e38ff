package model

import "time"

// Redirect modes of a domain policy.
const (
	ModeFull         = "full"
	ModePathSpecific = "path-specific"
)

// Behaviour for paths outside the backlink path set in path-specific mode.
const (
	UnmatchedNotFound = "404"
	UnmatchedHomepage = "homepage"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Domain is the redirect policy owned by one purchased domain.
type Domain struct {
	ID                uint      `db:"id" gorm:"primaryKey"`
	Name              string    `db:"name" gorm:"size:253;not null;uniqueIndex"`
	TargetURL         string    `db:"target_url" gorm:"type:text;not null"`
	RedirectMode      string    `db:"redirect_mode" gorm:"size:16;not null;default:full"`
	UnmatchedBehavior string    `db:"unmatched_behavior" gorm:"size:16;not null;default:'404'"`
	RedirectCode      int       `db:"redirect_code" gorm:"not null;default:301"`
	Status            string    `db:"status" gorm:"size:16;not null;default:inactive;index"`
	Priority          int       `db:"priority" gorm:"not null;default:0"`
	CreatedAt         time.Time `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}

// IsActive reports whether the domain is materialized into proxy configuration.
func (d *Domain) IsActive() bool {
	return d != nil && d.Status == StatusActive
}

// DomainRuleSet is everything the engine needs to decide redirects for one domain.
type DomainRuleSet struct {
	Domain        Domain
	BacklinkPaths []string
	Rules         []RedirectRule
}

// AssembleRuleSets groups backlink paths and rules under their domains, preserving domain order.
// Paths and rules of domains not in the list are dropped.
func AssembleRuleSets(domains []Domain, paths func(yield func(domainID uint, path string)), rules []RedirectRule) []DomainRuleSet {
	sets := make([]DomainRuleSet, len(domains))
	index := make(map[uint]int, len(domains))
	for i, d := range domains {
		sets[i] = DomainRuleSet{Domain: d}
		index[d.ID] = i
	}
	paths(func(domainID uint, path string) {
		if i, ok := index[domainID]; ok {
			sets[i].BacklinkPaths = append(sets[i].BacklinkPaths, path)
		}
	})
	for _, rule := range rules {
		if i, ok := index[rule.DomainID]; ok {
			sets[i].Rules = append(sets[i].Rules, rule)
		}
	}
	return sets
}
