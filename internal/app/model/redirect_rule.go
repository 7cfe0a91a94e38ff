package model

import "time"

// CatchAllPath is the source path of a rule that matches every otherwise unmatched path.
const CatchAllPath = "/*"

// RedirectRule is an explicit per-path rule. Non-regex rules are unique per (domain, source path).
type RedirectRule struct {
	ID           uint      `db:"id" gorm:"primaryKey"`
	DomainID     uint      `db:"domain_id" gorm:"not null;index;uniqueIndex:idx_rules_domain_source,where:is_regex = false"`
	SourcePath   string    `db:"source_path" gorm:"type:text;not null;uniqueIndex:idx_rules_domain_source,where:is_regex = false"`
	TargetURL    string    `db:"target_url" gorm:"type:text;not null"`
	RedirectType int       `db:"redirect_type" gorm:"not null;default:301"`
	IsRegex      bool      `db:"is_regex" gorm:"not null;default:false"`
	Priority     int       `db:"priority" gorm:"not null;default:0"`
	CreatedAt    time.Time `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `db:"updated_at" gorm:"autoUpdateTime"`

	Domain *Domain `db:"-" gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// IsCatchAll reports whether the rule is the domain's catch-all rule.
func (r *RedirectRule) IsCatchAll() bool {
	return !r.IsRegex && r.SourcePath == CatchAllPath
}
