// Package devices fetches ChromeOS device records from the Google Admin SDK
// Directory API.
package devices

import (
	"github.com/agentstation/utc"

	"github.com/agentstation/assetsync/internal/utils/ptr"
)

// Record is one directory device explored during a run. Optional attributes
// are nil when the directory did not report them.
type Record struct {
	SerialNumber string  `json:"serial_number" yaml:"serial_number"`
	Status       *string `json:"status,omitempty" yaml:"status,omitempty"`
	Model        *string `json:"model,omitempty" yaml:"model,omitempty"`
	MACAddress   *string `json:"mac_address,omitempty" yaml:"mac_address,omitempty"`
	IPAddress    *string `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
	UserEmail    *string `json:"user_email,omitempty" yaml:"user_email,omitempty"`
	// LastActive is the most recent activity date, YYYY-MM-DD.
	LastActive *string   `json:"last_active,omitempty" yaml:"last_active,omitempty"`
	LastSync   *utc.Time `json:"last_sync,omitempty" yaml:"last_sync,omitempty"`
	// EOLDate is the auto-update expiration date, YYYY-MM-DD.
	EOLDate      *string `json:"eol_date,omitempty" yaml:"eol_date,omitempty"`
	StorageBytes *int64  `json:"storage_bytes,omitempty" yaml:"storage_bytes,omitempty"`
	OrgUnitPath  *string `json:"org_unit_path,omitempty" yaml:"org_unit_path,omitempty"`
}

// ModelName returns the product name or "" when unset.
func (r Record) ModelName() string {
	return ptr.Deref(r.Model, "")
}

// StatusName returns the directory status or "" when unset.
func (r Record) StatusName() string {
	return ptr.Deref(r.Status, "")
}

// StorageGB returns the capacity in GiB, nil when unknown.
func (r Record) StorageGB() *float64 {
	if r.StorageBytes == nil {
		return nil
	}
	gb := BytesToGB(*r.StorageBytes)
	return &gb
}

// BytesToGB converts bytes to GiB rounded to two decimals.
func BytesToGB(b int64) float64 {
	gb := float64(b) / (1 << 30)
	return float64(int64(gb*100+0.5)) / 100
}
