// Package registry maintains the managed inventory: devices discovered by
// scans, their authorization state, tags, groups, alerts and maintenance
// schedules. All state lives behind a keyed Store interface.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SecureView-Labs/netsentry/pkg/models"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrGroupNotFound  = errors.New("group not found")
	ErrAlertNotFound  = errors.New("alert not found")
	ErrTaskNotFound   = errors.New("maintenance task not found")
	ErrAlertResolved  = errors.New("alert already resolved")
	ErrTaskCompleted  = errors.New("maintenance task already completed")
)

// Registry is the device inventory. Devices are keyed by IP (the natural
// key); the assigned ID stays stable for the device's lifetime.
type Registry struct {
	mu      sync.RWMutex
	devices Store[*models.ManagedDevice] // keyed by IP
	groups  Store[*models.DeviceGroup]
	alerts  Store[*models.Alert]
	tasks   Store[*models.MaintenanceTask]
	byID    map[string]string // device ID → IP

	logger *logrus.Logger
	now    func() time.Time
}

// New creates an empty in-memory registry.
func New(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		devices: newMemStore[*models.ManagedDevice](),
		groups:  newMemStore[*models.DeviceGroup](),
		alerts:  newMemStore[*models.Alert](),
		tasks:   newMemStore[*models.MaintenanceTask](),
		byID:    make(map[string]string),
		logger:  logger,
		now:     time.Now,
	}
}

// Upsert records a discovery result. A new IP creates a ManagedDevice with a
// fresh ID; a known IP replaces the embedded device wholesale (last write
// wins, stale ports are not merged) and bumps LastSeen.
func (r *Registry) Upsert(device *models.Device) *models.ManagedDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertLocked(device)
}

// ReconcileScan records a completed scan: found devices are upserted and
// known devices inside the scanned address set that did not answer are
// flipped to offline. Their LastSeen keeps the last successful contact so
// staleness checks stay meaningful. The unauthorized status is an operator
// decision and survives a missed probe.
func (r *Registry) ReconcileScan(found []*models.Device, scanned []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alive := make(map[string]bool, len(found))
	for _, d := range found {
		r.upsertLocked(d)
		alive[d.IP] = true
	}
	for _, ip := range scanned {
		if alive[ip] {
			continue
		}
		device, ok := r.devices.Get(ip)
		if !ok || device.Device.Status == models.StatusUnauthorized {
			continue
		}
		if device.Device.Status != models.StatusOffline {
			r.logger.WithField("ip", ip).Info("device went offline")
		}
		device.Device.Status = models.StatusOffline
	}
}

func (r *Registry) upsertLocked(device *models.Device) *models.ManagedDevice {
	now := r.now()
	if existing, ok := r.devices.Get(device.IP); ok {
		existing.Device = *device
		existing.LastSeen = now
		return existing
	}

	managed := &models.ManagedDevice{
		ID:          uuid.NewString(),
		Device:      *device,
		Authorized:  false,
		Tags:        []string{},
		Alerts:      []string{},
		Maintenance: []string{},
		FirstSeen:   now,
		LastSeen:    now,
	}
	r.devices.Put(device.IP, managed)
	r.byID[managed.ID] = device.IP
	r.logger.WithFields(logrus.Fields{"ip": device.IP, "id": managed.ID}).
		Debug("device registered")
	return managed
}

// Get looks a device up by its assigned ID.
func (r *Registry) Get(id string) (*models.ManagedDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(id)
}

// GetByIP looks a device up by IP.
func (r *Registry) GetByIP(ip string) (*models.ManagedDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.devices.Get(ip); ok {
		return d, nil
	}
	return nil, ErrDeviceNotFound
}

func (r *Registry) getLocked(id string) (*models.ManagedDevice, error) {
	ip, ok := r.byID[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	d, ok := r.devices.Get(ip)
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d, nil
}

// List returns all managed devices ordered by IP key.
func (r *Registry) List() []*models.ManagedDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.ManagedDevice, 0, r.devices.Len())
	for _, key := range r.devices.Keys() {
		if d, ok := r.devices.Get(key); ok {
			out = append(out, d)
		}
	}
	return out
}

// Remove deletes a device and cascades: group membership and the device's
// alerts and maintenance tasks go with it.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, err := r.getLocked(id)
	if err != nil {
		return err
	}

	if device.Group != "" {
		if group, ok := r.groups.Get(device.Group); ok {
			group.Members = removeString(group.Members, device.ID)
		}
	}
	for _, alertID := range device.Alerts {
		r.alerts.Delete(alertID)
	}
	for _, taskID := range device.Maintenance {
		r.tasks.Delete(taskID)
	}

	r.devices.Delete(device.Device.IP)
	delete(r.byID, device.ID)
	r.logger.WithField("ip", device.Device.IP).Info("device removed")
	return nil
}

// Authorize marks a device authorized or not. Unauthorizing flips the status
// to unauthorized and raises a medium security alert; authorizing restores
// online status.
func (r *Registry) Authorize(id string, authorized bool) (*models.ManagedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, err := r.getLocked(id)
	if err != nil {
		return nil, err
	}

	device.Authorized = authorized
	if authorized {
		device.Device.Status = models.StatusOnline
		return device, nil
	}

	device.Device.Status = models.StatusUnauthorized
	r.createAlertLocked(device, "security", models.SeverityMedium,
		"Device marked as unauthorized: "+device.Device.IP)
	return device, nil
}

// Tag adds a tag; duplicates are ignored.
func (r *Registry) Tag(id, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, err := r.getLocked(id)
	if err != nil {
		return err
	}
	for _, t := range device.Tags {
		if t == tag {
			return nil
		}
	}
	device.Tags = append(device.Tags, tag)
	return nil
}

// Untag removes a tag; removing an absent tag is a no-op.
func (r *Registry) Untag(id, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, err := r.getLocked(id)
	if err != nil {
		return err
	}
	device.Tags = removeString(device.Tags, tag)
	return nil
}

// CreateGroup registers a named device group.
func (r *Registry) CreateGroup(name string, policies map[string]string) *models.DeviceGroup {
	r.mu.Lock()
	defer r.mu.Unlock()

	group := &models.DeviceGroup{
		ID:       uuid.NewString(),
		Name:     name,
		Members:  []string{},
		Policies: policies,
	}
	r.groups.Put(group.ID, group)
	return group
}

// AssignGroup moves a device into a group, leaving any prior group first so
// a device belongs to at most one group.
func (r *Registry) AssignGroup(deviceID, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, err := r.getLocked(deviceID)
	if err != nil {
		return err
	}
	group, ok := r.groups.Get(groupID)
	if !ok {
		return ErrGroupNotFound
	}

	if device.Group != "" && device.Group != groupID {
		if prior, ok := r.groups.Get(device.Group); ok {
			prior.Members = removeString(prior.Members, device.ID)
		}
	}

	device.Group = groupID
	for _, m := range group.Members {
		if m == device.ID {
			return nil
		}
	}
	group.Members = append(group.Members, device.ID)
	return nil
}

// UnassignGroup removes a device from its group, if any.
func (r *Registry) UnassignGroup(deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, err := r.getLocked(deviceID)
	if err != nil {
		return err
	}
	if device.Group == "" {
		return nil
	}
	if group, ok := r.groups.Get(device.Group); ok {
		group.Members = removeString(group.Members, device.ID)
	}
	device.Group = ""
	return nil
}

// Groups returns all groups ordered by ID.
func (r *Registry) Groups() []*models.DeviceGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.DeviceGroup, 0, r.groups.Len())
	for _, key := range r.groups.Keys() {
		if g, ok := r.groups.Get(key); ok {
			out = append(out, g)
		}
	}
	return out
}

// CreateAlert raises an alert against a device.
func (r *Registry) CreateAlert(deviceID, alertType, severity, message string) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, err := r.getLocked(deviceID)
	if err != nil {
		return nil, err
	}
	return r.createAlertLocked(device, alertType, severity, message), nil
}

func (r *Registry) createAlertLocked(device *models.ManagedDevice, alertType, severity, message string) *models.Alert {
	alert := &models.Alert{
		ID:        uuid.NewString(),
		DeviceID:  device.ID,
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		CreatedAt: r.now(),
	}
	r.alerts.Put(alert.ID, alert)
	device.Alerts = append(device.Alerts, alert.ID)
	return alert
}

// ResolveAlert resolves an alert exactly once; the resolution fields are set
// together. Resolving twice is an error.
func (r *Registry) ResolveAlert(alertID, resolvedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts.Get(alertID)
	if !ok {
		return ErrAlertNotFound
	}
	if alert.Resolved {
		return ErrAlertResolved
	}

	now := r.now()
	alert.Resolved = true
	alert.ResolvedBy = resolvedBy
	alert.ResolvedAt = &now
	return nil
}

// Alerts returns all alerts ordered by ID.
func (r *Registry) Alerts() []*models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Alert, 0, r.alerts.Len())
	for _, key := range r.alerts.Keys() {
		if a, ok := r.alerts.Get(key); ok {
			out = append(out, a)
		}
	}
	return out
}

// ScheduleMaintenance creates a maintenance task for a device.
func (r *Registry) ScheduleMaintenance(deviceID, taskType string, date time.Time) (*models.MaintenanceTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, err := r.getLocked(deviceID)
	if err != nil {
		return nil, err
	}

	task := &models.MaintenanceTask{
		ID:            uuid.NewString(),
		DeviceID:      device.ID,
		Type:          taskType,
		ScheduledDate: date,
	}
	r.tasks.Put(task.ID, task)
	device.Maintenance = append(device.Maintenance, task.ID)
	return task, nil
}

// CompleteMaintenance marks a task done exactly once.
func (r *Registry) CompleteMaintenance(taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks.Get(taskID)
	if !ok {
		return ErrTaskNotFound
	}
	if task.Completed {
		return ErrTaskCompleted
	}

	now := r.now()
	task.Completed = true
	task.CompletedAt = &now
	return nil
}

// OverdueTasks returns incomplete tasks scheduled before the given time.
func (r *Registry) OverdueTasks(before time.Time) []*models.MaintenanceTask {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var overdue []*models.MaintenanceTask
	for _, key := range r.tasks.Keys() {
		task, ok := r.tasks.Get(key)
		if !ok {
			continue
		}
		if !task.Completed && task.ScheduledDate.Before(before) {
			overdue = append(overdue, task)
		}
	}
	return overdue
}

// Stats summarises the inventory.
type Stats struct {
	Total        int            `json:"total"`
	Authorized   int            `json:"authorized"`
	Unauthorized int            `json:"unauthorized"`
	Cameras      int            `json:"cameras"`
	ByType       map[string]int `json:"byType"`
	ByRisk       map[string]int `json:"byRisk"`
	ByStatus     map[string]int `json:"byStatus"`
	OpenAlerts   int            `json:"openAlerts"`
	Groups       int            `json:"groups"`
}

// Stats computes inventory aggregates.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		ByType:   map[string]int{},
		ByRisk:   map[string]int{},
		ByStatus: map[string]int{},
		Groups:   r.groups.Len(),
	}
	for _, key := range r.devices.Keys() {
		d, ok := r.devices.Get(key)
		if !ok {
			continue
		}
		stats.Total++
		if d.Authorized {
			stats.Authorized++
		} else {
			stats.Unauthorized++
		}
		if d.Device.IsCamera() {
			stats.Cameras++
		}
		stats.ByType[d.Device.DeviceType]++
		stats.ByRisk[d.Device.RiskLevel]++
		stats.ByStatus[d.Device.Status]++
	}
	for _, key := range r.alerts.Keys() {
		if a, ok := r.alerts.Get(key); ok && !a.Resolved {
			stats.OpenAlerts++
		}
	}
	return stats
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
