package sync

import (
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/go-cmp/cmp"

	"github.com/agentstation/assetsync/internal/utils/ptr"
	"github.com/agentstation/assetsync/pkg/assets"
	"github.com/agentstation/assetsync/pkg/devices"
)

func TestBuildPayload(t *testing.T) {
	lastSync := utc.New(time.Date(2025, 2, 3, 22, 15, 0, 0, time.UTC))
	storage := int64(15_500_000_000)

	opts := Defaults()
	opts.Fields.Storage = "_snipeit_storage_5"
	e := &Engine{opts: opts}

	tests := []struct {
		name string
		rec  devices.Record
		want assets.Payload
	}{
		{
			name: "all attributes",
			rec: devices.Record{
				SerialNumber: "5CD1",
				MACAddress:   ptr.String("aabbccddeeff"),
				IPAddress:    ptr.String("10.0.0.7"),
				UserEmail:    ptr.String("ada@example.com"),
				LastActive:   ptr.String("2025-02-01"),
				LastSync:     &lastSync,
				EOLDate:      ptr.String("2030-06-01"),
				StorageBytes: &storage,
			},
			want: assets.Payload{
				"asset_tag":              "CB-5CD1",
				"serial":                 "5CD1",
				"model_id":               10,
				"status_id":              2,
				"_snipeit_mac_address_1": "AA:BB:CC:DD:EE:FF",
				"_snipeit_ip_address_3":  "10.0.0.7",
				"_snipeit_user_10":       "ada@example.com",
				"_snipeit_sync_date_9":   "2025-02-01",
				"asset_eol_date":         "2030-06-01",
				"_snipeit_storage_5":     14.44,
			},
		},
		{
			name: "sync date falls back to last sync",
			rec:  devices.Record{SerialNumber: "5CD1", LastSync: &lastSync},
			want: assets.Payload{
				"asset_tag":            "CB-5CD1",
				"serial":               "5CD1",
				"model_id":             10,
				"status_id":            2,
				"_snipeit_sync_date_9": "2025-02-03",
			},
		},
		{
			name: "bare device writes core fields only",
			rec:  devices.Record{SerialNumber: "5CD1", IPAddress: ptr.String("")},
			want: assets.Payload{
				"asset_tag": "CB-5CD1",
				"serial":    "5CD1",
				"model_id":  10,
				"status_id": 2,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.buildPayload(tt.rec, "CB-5CD1", 10, 2)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildPayloadDisabledFields(t *testing.T) {
	e := &Engine{opts: Defaults().Apply(WithCustomFields(CustomFields{}))}
	got := e.buildPayload(devices.Record{
		SerialNumber: "5CD1",
		MACAddress:   ptr.String("aabbccddeeff"),
		EOLDate:      ptr.String("2030-06-01"),
	}, "5CD1", 1, 2)
	if diff := cmp.Diff(assets.Payload{"asset_tag": "5CD1", "serial": "5CD1", "model_id": 1, "status_id": 2}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}
