package automation

import (
	"context"
	"fmt"
	"time"

	"homewatt/internal/models"
)

// fakeStore backs every engine collaborator interface in memory
type fakeStore struct {
	devices map[string]*models.Device
	rules   map[string]*models.AutomationRule
	logs    map[string]*models.AutomationLog

	activity []string
	events   []fakeEvent
	pushed   []string

	rate    float64
	saveErr map[string]error
}

type fakeEvent struct {
	homeID  string
	event   string
	payload any
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices: map[string]*models.Device{},
		rules:   map[string]*models.AutomationRule{},
		logs:    map[string]*models.AutomationLog{},
		rate:    1.0,
		saveErr: map[string]error{},
	}
}

func (f *fakeStore) addDevice(d models.Device) {
	dc := d
	f.devices[d.ID] = &dc
}

func (f *fakeStore) addRule(r models.AutomationRule) {
	rc := r
	f.rules[r.ID] = &rc
}

func (f *fakeStore) addLog(l models.AutomationLog) {
	lc := l
	f.logs[l.ID] = &lc
}

// DeviceRegistry

func (f *fakeStore) Find(_ context.Context, homeID string) ([]models.Device, error) {
	var out []models.Device
	for _, d := range f.devices {
		if d.HomeID == homeID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeStore) FindByIDs(_ context.Context, ids []string) ([]models.Device, error) {
	var out []models.Device
	for _, id := range ids {
		if d, ok := f.devices[id]; ok {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeStore) Save(_ context.Context, device *models.Device) error {
	if err := f.saveErr[device.ID]; err != nil {
		return err
	}
	dc := *device
	f.devices[device.ID] = &dc
	return nil
}

// RuleStore

func (f *fakeStore) FindEnabled(_ context.Context, homeID string) ([]models.AutomationRule, error) {
	var out []models.AutomationRule
	for _, r := range f.rules {
		if r.HomeID == homeID && r.Enabled {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) FindRuleByID(_ context.Context, id string) (*models.AutomationRule, error) {
	r, ok := f.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: rule %s", ErrNotFound, id)
	}
	rc := *r
	return &rc, nil
}

func (f *fakeStore) CountEnabled(_ context.Context, homeID string) (int, error) {
	n := 0
	for _, r := range f.rules {
		if r.HomeID == homeID && r.Enabled {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SaveMetadata(_ context.Context, ruleID string, md models.RuleMetadata) error {
	r, ok := f.rules[ruleID]
	if !ok {
		return fmt.Errorf("%w: rule %s", ErrNotFound, ruleID)
	}
	r.Metadata = md
	return nil
}

// LogStore

func (f *fakeStore) Create(_ context.Context, entry *models.AutomationLog) error {
	lc := *entry
	f.logs[entry.ID] = &lc
	return nil
}

func (f *fakeStore) FindLogByID(_ context.Context, id string) (*models.AutomationLog, error) {
	l, ok := f.logs[id]
	if !ok {
		return nil, fmt.Errorf("%w: log %s", ErrNotFound, id)
	}
	lc := *l
	return &lc, nil
}

func (f *fakeStore) SetUserResponse(_ context.Context, logID string, resp models.UserResponse) error {
	l, ok := f.logs[logID]
	if !ok {
		return fmt.Errorf("%w: log %s", ErrNotFound, logID)
	}
	if l.UserResponse != nil {
		return fmt.Errorf("%w: log %s", ErrAlreadyUndone, logID)
	}
	rc := resp
	l.UserResponse = &rc
	return nil
}

func (f *fakeStore) CountExecutedSince(_ context.Context, homeID string, since time.Time) (int, error) {
	n := 0
	for _, l := range f.logs {
		if l.HomeID == homeID && l.Executed && l.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountUndoneSince(_ context.Context, homeID string, since time.Time) (int, error) {
	n := 0
	for _, l := range f.logs {
		if l.HomeID == homeID && l.UserResponse != nil &&
			l.UserResponse.Type == models.ResponseUndone && l.UserResponse.Timestamp.After(since) {
			n++
		}
	}
	return n, nil
}

// ActivityStore

func (f *fakeStore) RecordActivity(_ context.Context, homeID, kind, description string) error {
	f.activity = append(f.activity, fmt.Sprintf("%s/%s: %s", homeID, kind, description))
	return nil
}

// Broadcaster

func (f *fakeStore) Publish(homeID, event string, payload any) {
	f.events = append(f.events, fakeEvent{homeID: homeID, event: event, payload: payload})
}

// TariffSource

func (f *fakeStore) FlatRate(_ context.Context, _ string) float64 {
	return f.rate
}

// Commander

func (f *fakeStore) PushState(device models.Device) {
	f.pushed = append(f.pushed, device.ID)
}

// newTestEngine wires an engine entirely onto the fake store with a frozen clock
func newTestEngine(f *fakeStore, now time.Time) *Engine {
	e := NewEngine(f, f, f, f, f, f, f)
	e.clock = func() time.Time { return now }
	return e
}

// soleLog returns the only log in the store, failing the invariant otherwise
func (f *fakeStore) soleLog() (*models.AutomationLog, error) {
	if len(f.logs) != 1 {
		return nil, fmt.Errorf("expected exactly 1 log, have %d", len(f.logs))
	}
	for _, l := range f.logs {
		return l, nil
	}
	return nil, nil
}
