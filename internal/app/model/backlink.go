package model

import "time"

// Backlink is one external page known to link to a path on a domain.
type Backlink struct {
	ID         uint      `db:"id" gorm:"primaryKey"`
	DomainID   uint      `db:"domain_id" gorm:"not null;index:idx_backlinks_domain_path"`
	LinkingURL string    `db:"linking_url" gorm:"type:text;not null"`
	URLPath    string    `db:"url_path" gorm:"type:text;not null;index:idx_backlinks_domain_path"`
	CreatedAt  time.Time `db:"created_at" gorm:"autoCreateTime"`

	Domain *Domain `db:"-" gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
