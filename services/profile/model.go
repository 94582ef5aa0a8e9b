package profile

import (
	"time"
)

// Profile is the user record every user task hangs off.
type Profile struct {
	ID               string     `gorm:"column:id;primaryKey" json:"id"`
	DisplayName      string     `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Email            string     `gorm:"column:email;type:varchar(255);index" json:"email"`
	PortfolioDomain  string     `gorm:"column:portfolio_domain;type:varchar(255)" json:"portfolio_domain,omitempty"`
	VerificationCode string     `gorm:"column:verification_code;type:varchar(64)" json:"verification_code"`
	DomainVerifiedAt *time.Time `gorm:"column:domain_verified_at" json:"domain_verified_at,omitempty"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) DomainVerified() bool {
	return p.DomainVerifiedAt != nil
}
