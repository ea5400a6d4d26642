package registry

import (
	"encoding/json"
	"errors"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

// ErrImportInvalid is returned for malformed or inconsistent import payloads.
// The registry is left untouched in that case.
var ErrImportInvalid = errors.New("Failed to import device data: Invalid format")

// snapshot is the wire shape of a full registry export.
type snapshot struct {
	Version int                       `json:"version"`
	Devices []*models.ManagedDevice   `json:"devices"`
	Groups  []*models.DeviceGroup     `json:"groups"`
	Alerts  []*models.Alert           `json:"alerts"`
	Tasks   []*models.MaintenanceTask `json:"maintenance"`
}

const snapshotVersion = 1

// ExportJSON serialises the full registry state.
func (r *Registry) ExportJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := snapshot{Version: snapshotVersion}
	for _, key := range r.devices.Keys() {
		if d, ok := r.devices.Get(key); ok {
			snap.Devices = append(snap.Devices, d)
		}
	}
	for _, key := range r.groups.Keys() {
		if g, ok := r.groups.Get(key); ok {
			snap.Groups = append(snap.Groups, g)
		}
	}
	for _, key := range r.alerts.Keys() {
		if a, ok := r.alerts.Get(key); ok {
			snap.Alerts = append(snap.Alerts, a)
		}
	}
	for _, key := range r.tasks.Keys() {
		if t, ok := r.tasks.Get(key); ok {
			snap.Tasks = append(snap.Tasks, t)
		}
	}
	return json.MarshalIndent(snap, "", "  ")
}

// ImportJSON replaces the registry state with a previously exported snapshot.
// Validation happens before any mutation: a malformed payload leaves the
// registry exactly as it was.
func (r *Registry) ImportJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return ErrImportInvalid
	}
	if err := validateSnapshot(&snap); err != nil {
		return err
	}

	devices := newMemStore[*models.ManagedDevice]()
	groups := newMemStore[*models.DeviceGroup]()
	alerts := newMemStore[*models.Alert]()
	tasks := newMemStore[*models.MaintenanceTask]()
	byID := make(map[string]string, len(snap.Devices))

	for _, d := range snap.Devices {
		devices.Put(d.Device.IP, d)
		byID[d.ID] = d.Device.IP
	}
	for _, g := range snap.Groups {
		groups.Put(g.ID, g)
	}
	for _, a := range snap.Alerts {
		alerts.Put(a.ID, a)
	}
	for _, t := range snap.Tasks {
		tasks.Put(t.ID, t)
	}

	r.mu.Lock()
	r.devices = devices
	r.groups = groups
	r.alerts = alerts
	r.tasks = tasks
	r.byID = byID
	r.mu.Unlock()

	r.logger.WithField("devices", len(snap.Devices)).Info("registry imported")
	return nil
}

func validateSnapshot(snap *snapshot) error {
	groupIDs := make(map[string]bool, len(snap.Groups))
	for _, g := range snap.Groups {
		if g == nil || g.ID == "" {
			return ErrImportInvalid
		}
		groupIDs[g.ID] = true
	}

	seenIPs := make(map[string]bool, len(snap.Devices))
	seenIDs := make(map[string]bool, len(snap.Devices))
	for _, d := range snap.Devices {
		if d == nil || d.ID == "" || d.Device.IP == "" {
			return ErrImportInvalid
		}
		if seenIPs[d.Device.IP] || seenIDs[d.ID] {
			return ErrImportInvalid
		}
		seenIPs[d.Device.IP] = true
		seenIDs[d.ID] = true
		if d.Group != "" && !groupIDs[d.Group] {
			return ErrImportInvalid
		}
	}

	for _, a := range snap.Alerts {
		if a == nil || a.ID == "" {
			return ErrImportInvalid
		}
		if a.Resolved && (a.ResolvedBy == "" || a.ResolvedAt == nil) {
			return ErrImportInvalid
		}
	}
	for _, t := range snap.Tasks {
		if t == nil || t.ID == "" {
			return ErrImportInvalid
		}
	}
	return nil
}
