package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// VPAType selects which payment address is presented to customers.
type VPAType string

const (
	VPAPrimary VPAType = "primary"
	VPABackup  VPAType = "backup"
)

// ShopSettings is the owner-controlled configuration of a shop.
type ShopSettings struct {
	bun.BaseModel `bun:"table:shop_settings,alias:s"`

	OwnerID       string    `bun:"owner_id,pk"`
	ShopName      string    `bun:"shop_name,notnull"`
	IsOpen        bool      `bun:"is_open,notnull"`
	PrimaryVPA    string    `bun:"primary_vpa"`
	BackupVPA     string    `bun:"backup_vpa"`
	ActiveVPAType VPAType   `bun:"active_vpa_type,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero"`
}

// ActiveVPA returns the address currently presented for payment, falling back
// to the other address when the selected one is blank.
func (s *ShopSettings) ActiveVPA() string {
	if s.ActiveVPAType == VPABackup {
		if s.BackupVPA != "" {
			return s.BackupVPA
		}
		return s.PrimaryVPA
	}
	if s.PrimaryVPA != "" {
		return s.PrimaryVPA
	}
	return s.BackupVPA
}
