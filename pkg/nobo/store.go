package nobo

import (
	"slices"
	"sync"
)

// ordered is a map that remembers first-insertion order. Re-setting a key
// keeps its original position.
type ordered[V any] struct {
	keys  []string
	items map[string]V
}

func newOrdered[V any]() *ordered[V] {
	return &ordered[V]{items: make(map[string]V)}
}

func (o *ordered[V]) set(key string, v V) {
	if _, ok := o.items[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.items[key] = v
}

func (o *ordered[V]) get(key string) (V, bool) {
	v, ok := o.items[key]
	return v, ok
}

func (o *ordered[V]) remove(key string) {
	if _, ok := o.items[key]; !ok {
		return
	}
	delete(o.items, key)
	if i := slices.Index(o.keys, key); i >= 0 {
		o.keys = slices.Delete(o.keys, i, i+1)
	}
}

func (o *ordered[V]) values() []V {
	out := make([]V, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.items[k])
	}
	return out
}

func (o *ordered[V]) clear() {
	o.keys = nil
	clear(o.items)
}

// Store is the in-memory model of the hub, built from the messages it
// pushes. Apply is the only mutator. Accessors return snapshots that the
// next applied message may supersede.
type Store struct {
	mu           sync.RWMutex
	zones        *ordered[Zone]
	components   *ordered[Component]
	weekProfiles *ordered[WeekProfile]
	overrides    *ordered[Override]
	temperatures *ordered[string]
	hubInfo      *HubInfo
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		zones:        newOrdered[Zone](),
		components:   newOrdered[Component](),
		weekProfiles: newOrdered[WeekProfile](),
		overrides:    newOrdered[Override](),
		temperatures: newOrdered[string](),
	}
}

// Apply folds one decoded message into the model. Entities that fail
// validation are rejected with an error wrapping ErrValidation and the
// previously stored value, if any, is kept.
func (s *Store) Apply(msg Message) error {
	switch m := msg.(type) {
	case AllInfoStart:
		s.mu.Lock()
		s.zones.clear()
		s.components.clear()
		s.weekProfiles.clear()
		s.overrides.clear()
		s.temperatures.clear()
		s.mu.Unlock()

	case ZoneMessage:
		z, err := NewZone(m.Zone)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.zones.set(z.ID, z)
		s.mu.Unlock()

	case ComponentMessage:
		c, err := NewComponent(m.Component)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.components.set(c.Serial, c)
		s.mu.Unlock()

	case WeekProfileMessage:
		w, err := NewWeekProfile(m.Profile)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.weekProfiles.set(w.ID, w)
		s.mu.Unlock()

	case OverrideMessage:
		s.mu.Lock()
		s.overrides.set(m.Override.ID, m.Override)
		s.mu.Unlock()

	case HubInfoMessage:
		hub := m.Hub
		s.mu.Lock()
		s.hubInfo = &hub
		s.mu.Unlock()

	case ZoneRemoved:
		s.mu.Lock()
		s.zones.remove(m.ZoneID)
		s.mu.Unlock()
	case ComponentRemoved:
		s.mu.Lock()
		s.components.remove(m.Serial)
		s.mu.Unlock()
	case WeekProfileRemoved:
		s.mu.Lock()
		s.weekProfiles.remove(m.WeekProfileID)
		s.mu.Unlock()
	case OverrideRemoved:
		s.mu.Lock()
		s.overrides.remove(m.OverrideID)
		s.mu.Unlock()

	case TemperatureReading:
		s.mu.Lock()
		s.temperatures.set(m.Serial, m.Temperature)
		s.mu.Unlock()

	case HandshakeEcho, InternetAccessMessage, HubErrorMessage:
		// Not part of the model.
	}
	return nil
}

func (s *Store) Zones() []Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zones.values()
}

func (s *Store) Zone(id string) (Zone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zones.get(id)
}

func (s *Store) Components() []Component {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.components.values()
}

func (s *Store) Component(serial string) (Component, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.components.get(serial)
}

func (s *Store) WeekProfiles() []WeekProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weekProfiles.values()
}

func (s *Store) WeekProfile(id string) (WeekProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weekProfiles.get(id)
}

func (s *Store) Overrides() []Override {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrides.values()
}

func (s *Store) Override(id string) (Override, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrides.get(id)
}

// Temperature returns the last reading of a component. A reading of
// TemperatureUnknown is reported as absent.
func (s *Store) Temperature(serial string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.temperatures.get(serial)
	if !ok || t == TemperatureUnknown {
		return "", false
	}
	return t, true
}

// HubInfo returns the last hub metadata, if any has been received.
func (s *Store) HubInfo() (HubInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hubInfo == nil {
		return HubInfo{}, false
	}
	return *s.hubInfo, true
}
