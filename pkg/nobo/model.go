package nobo

import (
	"fmt"
)

// Mode is the effective heating mode of a zone or a schedule segment.
type Mode string

const (
	ModeNormal  Mode = "normal"
	ModeComfort Mode = "comfort"
	ModeEco     Mode = "eco"
	ModeAway    Mode = "away"
	ModeOff     Mode = "off"
)

// OverrideMode is the wire code of an override's mode.
type OverrideMode string

const (
	OverrideNormal  OverrideMode = "0"
	OverrideComfort OverrideMode = "1"
	OverrideEco     OverrideMode = "2"
	OverrideAway    OverrideMode = "3"
)

// OverrideType is the wire code of an override's duration kind.
type OverrideType string

const (
	OverrideNow      OverrideType = "0"
	OverrideTimer    OverrideType = "1"
	OverrideFromTo   OverrideType = "2"
	OverrideConstant OverrideType = "3"
)

// OverrideTarget is the wire code of an override's scope.
type OverrideTarget string

const (
	TargetGlobal    OverrideTarget = "0"
	TargetZone      OverrideTarget = "1"
	TargetComponent OverrideTarget = "2"
)

const (
	allowedNo  = "0"
	allowedYes = "1"
)

// ZoneRecord is a zone as it appears on the wire.
type ZoneRecord struct {
	ID                   string
	Name                 string
	WeekProfileID        string
	ComfortC             string
	EcoC                 string
	OverrideAllowed      string
	DeprecatedOverrideID string
}

// ComponentRecord is a component as it appears on the wire.
type ComponentRecord struct {
	Serial              string
	Status              string
	Name                string
	ReverseOnOff        string
	ZoneID              string
	OverrideID          string
	TempSensorForZoneID string
}

// WeekProfileRecord is a week profile as it appears on the wire.
type WeekProfileRecord struct {
	ID      string
	Name    string
	Entries []string
}

// Zone is a heating area with its own schedule and target temperatures.
// Zones are values: updates produce a new Zone.
type Zone struct {
	ID              string
	Name            string
	WeekProfileID   string
	ComfortC        int
	EcoC            int
	OverrideAllowed bool
}

// NewZone builds a validated Zone from its wire record.
func NewZone(r ZoneRecord) (Zone, error) {
	if r.ID == "" {
		return Zone{}, fmt.Errorf("%w: zone without id", ErrValidation)
	}
	comfort, err := parseTemperature("comfort", r.ComfortC)
	if err != nil {
		return Zone{}, fmt.Errorf("zone %s: %w", r.ID, err)
	}
	eco, err := parseTemperature("eco", r.EcoC)
	if err != nil {
		return Zone{}, fmt.Errorf("zone %s: %w", r.ID, err)
	}
	z := Zone{
		ID:              r.ID,
		Name:            r.Name,
		WeekProfileID:   r.WeekProfileID,
		ComfortC:        comfort,
		EcoC:            eco,
		OverrideAllowed: r.OverrideAllowed == allowedYes,
	}
	if err := z.validate(); err != nil {
		return Zone{}, err
	}
	return z, nil
}

func (z Zone) validate() error {
	if err := ValidateTemperature("comfort", z.ComfortC); err != nil {
		return fmt.Errorf("zone %s: %w", z.ID, err)
	}
	if err := ValidateTemperature("eco", z.EcoC); err != nil {
		return fmt.Errorf("zone %s: %w", z.ID, err)
	}
	if z.ComfortC < z.EcoC {
		return fmt.Errorf("%w: zone %s comfort %d below eco %d", ErrValidation, z.ID, z.ComfortC, z.EcoC)
	}
	return nil
}

// ZonePatch lists zone fields to change; nil fields are kept.
type ZonePatch struct {
	Name            *string
	WeekProfileID   *string
	ComfortC        *int
	EcoC            *int
	OverrideAllowed *bool
}

// Patch returns a copy of z with p applied. The result is validated as a
// whole; on failure z is returned unchanged together with the error.
func (z Zone) Patch(p ZonePatch) (Zone, error) {
	next := z
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.WeekProfileID != nil {
		next.WeekProfileID = *p.WeekProfileID
	}
	if p.ComfortC != nil {
		next.ComfortC = *p.ComfortC
	}
	if p.EcoC != nil {
		next.EcoC = *p.EcoC
	}
	if p.OverrideAllowed != nil {
		next.OverrideAllowed = *p.OverrideAllowed
	}
	if err := next.validate(); err != nil {
		return z, err
	}
	return next, nil
}

// updateArgs is the U00 argument list for z.
func (z Zone) updateArgs() []string {
	allowed := allowedNo
	if z.OverrideAllowed {
		allowed = allowedYes
	}
	return []string{
		z.ID,
		z.Name,
		z.WeekProfileID,
		fmt.Sprint(z.ComfortC),
		fmt.Sprint(z.EcoC),
		allowed,
		NoValue,
	}
}

// Component is a physical device attached to the hub.
type Component struct {
	Serial              string
	Status              string
	Name                string
	ReverseOnOff        string
	ZoneID              string
	OverrideID          string
	TempSensorForZoneID string
	// Model is nil when the serial prefix is not a known model.
	Model *DeviceModel
}

// NewComponent builds a Component from its wire record and annotates it with
// its device model when the serial prefix is known.
func NewComponent(r ComponentRecord) (Component, error) {
	if r.Serial == "" {
		return Component{}, fmt.Errorf("%w: component without serial", ErrValidation)
	}
	c := Component{
		Serial:              r.Serial,
		Status:              r.Status,
		Name:                r.Name,
		ReverseOnOff:        r.ReverseOnOff,
		ZoneID:              r.ZoneID,
		OverrideID:          r.OverrideID,
		TempSensorForZoneID: r.TempSensorForZoneID,
	}
	if m, ok := LookupDeviceModel(c.ModelID()); ok {
		c.Model = &m
	}
	return c, nil
}

// ModelID is the device model prefix of the serial.
func (c Component) ModelID() string {
	if len(c.Serial) < 3 {
		return c.Serial
	}
	return c.Serial[:3]
}

// InZone reports whether the component belongs to a zone.
func (c Component) InZone() bool {
	return c.ZoneID != "" && c.ZoneID != NoValue
}

// Override is a manual mode directive taking precedence over schedules.
type Override struct {
	ID         string
	Mode       OverrideMode
	Type       OverrideType
	TargetType OverrideTarget
	TargetID   string
	StartTime  string
	EndTime    string
}

// HubInfo is the hub's identity and firmware metadata.
type HubInfo struct {
	Serial                    string
	Name                      string
	DefaultAwayOverrideLength string
	OverrideID                string
	SoftwareVersion           string
	HardwareVersion           string
	ProductionDate            string
}

// InternetAccess is the hub's cloud access setting.
type InternetAccess struct {
	Enabled bool
	Key     string
}

func overrideModeToMode(m OverrideMode) Mode {
	switch m {
	case OverrideComfort:
		return ModeComfort
	case OverrideEco:
		return ModeEco
	default:
		return ModeAway
	}
}
