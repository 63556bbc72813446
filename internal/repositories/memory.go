package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

type memoryDevice struct {
	models.Device
	sequence int64
}

// MemoryStore implements [models.Store] with maps guarded by a single mutex.
//
// Nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	codes    map[string]string
	devices  map[string]*memoryDevice
	sequence int64
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.Session),
		codes:    make(map[string]string),
		devices:  make(map[string]*memoryDevice),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateSession(_ context.Context, s models.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.codes[s.Code]; ok {
		return shared.ErrCodeTaken
	}
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("failed to insert session: duplicate id %s", s.ID)
	}

	m.sessions[s.ID] = s
	m.codes[s.Code] = s.ID
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, key models.LookupKey) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := key.Value
	if key.Kind == models.ByCode {
		var ok bool
		if id, ok = m.codes[key.Value]; !ok {
			return nil, shared.ErrSessionNotFound
		}
	}

	s, ok := m.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) UpsertDevice(_ context.Context, d models.Device) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[d.SessionID]; !ok {
		return shared.ErrSessionNotFound
	}

	if existing, ok := m.devices[d.ID]; ok && existing.SessionID == d.SessionID {
		existing.Name = d.Name
		existing.ProgressMs = d.ProgressMs
		existing.LastUpdated = d.LastUpdated
		return nil
	}

	m.sequence++
	m.devices[d.ID] = &memoryDevice{Device: d, sequence: m.sequence}
	return nil
}

func (m *MemoryStore) UpdateProgress(_ context.Context, u models.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[u.SessionID]
	if !ok {
		return shared.ErrSessionNotFound
	}

	d, ok := m.devices[u.DeviceID]
	if !ok || d.SessionID != u.SessionID {
		return shared.ErrDeviceNotInSession
	}

	d.ProgressMs = u.ProgressMs
	d.LastUpdated = u.At

	s.CurrentProgressMs = u.ProgressMs
	if u.IsPlaying != nil {
		s.IsPlaying = *u.IsPlaying
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) ListDevices(_ context.Context, sessionID string) ([]models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []*memoryDevice
	for _, d := range m.devices {
		if d.SessionID == sessionID {
			found = append(found, d)
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].sequence < found[j].sequence })

	devices := make([]models.Device, len(found))
	for i, d := range found {
		devices[i] = d.Device
	}
	return devices, nil
}

func (m *MemoryStore) DeleteDevice(_ context.Context, sessionID, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return shared.ErrSessionNotFound
	}

	d, ok := m.devices[deviceID]
	if !ok || d.SessionID != sessionID {
		return shared.ErrDeviceNotInSession
	}
	delete(m.devices, deviceID)
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return shared.ErrSessionNotFound
	}
	m.deleteLocked(sessionID)
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			m.deleteLocked(id)
			removed++
		}
	}
	return removed, nil
}

// deleteLocked drops a session, its code and its devices. Callers hold mu.
func (m *MemoryStore) deleteLocked(sessionID string) {
	s := m.sessions[sessionID]
	delete(m.codes, s.Code)
	delete(m.sessions, sessionID)

	for id, d := range m.devices {
		if d.SessionID == sessionID {
			delete(m.devices, id)
		}
	}
}
