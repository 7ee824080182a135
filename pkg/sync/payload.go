package sync

import (
	"github.com/agentstation/assetsync/pkg/assets"
	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/devices"
)

// buildPayload maps a device onto a hardware create/update body. Custom
// fields are only written when configured and when the device has a value.
func (e *Engine) buildPayload(rec devices.Record, assetTag string, modelID, statusID int) assets.Payload {
	p := assets.Payload{
		"asset_tag": assetTag,
		"serial":    rec.SerialNumber,
		"model_id":  modelID,
		"status_id": statusID,
	}
	f := e.opts.Fields
	setString(p, f.MAC, NormalizeMAC(rec.MACAddress))
	setString(p, f.IP, rec.IPAddress)
	setString(p, f.User, rec.UserEmail)
	setString(p, f.SyncDate, syncDate(rec))
	setString(p, f.EOL, rec.EOLDate)
	if gb := rec.StorageGB(); f.Storage != "" && gb != nil {
		p[f.Storage] = *gb
	}
	return p
}

// syncDate is the last active date, else the date of the last directory sync.
func syncDate(rec devices.Record) *string {
	if rec.LastActive != nil && *rec.LastActive != "" {
		return rec.LastActive
	}
	if rec.LastSync != nil {
		d := rec.LastSync.Time.UTC().Format(constants.DateFormat)
		return &d
	}
	return nil
}

func setString(p assets.Payload, field string, v *string) {
	if field == "" || v == nil || *v == "" {
		return
	}
	p[field] = *v
}
