package nobo

import (
	"fmt"
	"time"
)

// ZoneMode resolves the effective mode of a zone at the given time.
//
// Overrides are checked in the order the hub announced them and the first
// match wins: a zone override targeting zoneID, or a global override when the
// zone allows overrides. NORMAL overrides are inactive and component
// overrides never apply. Without a match the zone's week profile decides; a
// zone without a known profile is normal.
func (s *Store) ZoneMode(zoneID string, at time.Time) (Mode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	z, ok := s.zones.get(zoneID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownZone, zoneID)
	}

	for _, ov := range s.overrides.values() {
		if ov.Mode == OverrideNormal {
			continue
		}
		if ov.TargetType == TargetZone && ov.TargetID == zoneID {
			return overrideModeToMode(ov.Mode), nil
		}
		if ov.TargetType == TargetGlobal && z.OverrideAllowed {
			return overrideModeToMode(ov.Mode), nil
		}
	}

	if w, ok := s.weekProfiles.get(z.WeekProfileID); ok {
		return w.StatusAt(at), nil
	}
	return ModeNormal, nil
}

// CurrentTemperature returns the first known reading among the zone's
// components.
func (s *Store) CurrentTemperature(zoneID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.components.values() {
		if c.ZoneID != zoneID {
			continue
		}
		if t, ok := s.temperatures.get(c.Serial); ok && t != TemperatureUnknown {
			return t, true
		}
	}
	return "", false
}

// ZoneComponents lists the components that belong to a zone.
func (s *Store) ZoneComponents(zoneID string) []Component {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Component
	for _, c := range s.components.values() {
		if c.ZoneID == zoneID {
			out = append(out, c)
		}
	}
	return out
}

// ZoneStatus is a point-in-time view of a zone with its resolved mode.
type ZoneStatus struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Mode        Mode   `json:"mode"`
	ComfortC    int    `json:"comfort"`
	EcoC        int    `json:"eco"`
	Temperature string `json:"temperature,omitempty"`
}

// ZoneStatus combines the zone, its effective mode at the given time and
// its current temperature.
func (s *Store) ZoneStatus(zoneID string, at time.Time) (ZoneStatus, error) {
	mode, err := s.ZoneMode(zoneID, at)
	if err != nil {
		return ZoneStatus{}, err
	}
	z, ok := s.Zone(zoneID)
	if !ok {
		return ZoneStatus{}, fmt.Errorf("%w: %s", ErrUnknownZone, zoneID)
	}
	temp, _ := s.CurrentTemperature(zoneID)
	return ZoneStatus{
		ID:          z.ID,
		Name:        z.Name,
		Mode:        mode,
		ComfortC:    z.ComfortC,
		EcoC:        z.EcoC,
		Temperature: temp,
	}, nil
}
