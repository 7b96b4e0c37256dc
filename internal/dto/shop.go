package dto

import "time"

// ShopResponse is the public view of the shop.
type ShopResponse struct {
	Name   string `json:"name"`
	IsOpen bool   `json:"is_open"`
}

// ShopSettingsResponse is the owner's view of the settings.
type ShopSettingsResponse struct {
	OwnerID       string    `json:"owner_id"`
	ShopName      string    `json:"shop_name"`
	IsOpen        bool      `json:"is_open"`
	PrimaryVPA    string    `json:"primary_vpa"`
	BackupVPA     string    `json:"backup_vpa"`
	ActiveVPAType string    `json:"active_vpa_type"`
	ActiveVPA     string    `json:"active_vpa"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// ShopSettingsRequest updates settings; omitted fields are unchanged.
type ShopSettingsRequest struct {
	ShopName      *string `json:"shop_name"`
	IsOpen        *bool   `json:"is_open"`
	PrimaryVPA    *string `json:"primary_vpa"`
	BackupVPA     *string `json:"backup_vpa"`
	ActiveVPAType *string `json:"active_vpa_type"`
}
