package nobo

import (
	"context"
	"fmt"
)

// SetZoneTemperatures changes a zone's comfort and eco targets. The values
// are validated against the current zone before anything is sent.
func (h *Hub) SetZoneTemperatures(ctx context.Context, zoneID string, comfortC, ecoC int) error {
	return h.UpdateZone(ctx, zoneID, ZonePatch{ComfortC: &comfortC, EcoC: &ecoC})
}

// UpdateZone sends the current zone with p applied. The Store is not
// changed; the hub confirms with a V00 update.
func (h *Hub) UpdateZone(ctx context.Context, zoneID string, p ZonePatch) error {
	z, ok := h.store.Zone(zoneID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownZone, zoneID)
	}
	next, err := z.Patch(p)
	if err != nil {
		return err
	}
	return h.Send(ctx, CmdUpdateZone, next.updateArgs()...)
}

// OverrideRequest describes an override to create. Empty times and target
// id default to NoValue.
type OverrideRequest struct {
	Mode       OverrideMode
	Type       OverrideType
	TargetType OverrideTarget
	TargetID   string
	StartTime  string
	EndTime    string
}

func (r OverrideRequest) args() ([]string, error) {
	switch r.Mode {
	case OverrideNormal, OverrideComfort, OverrideEco, OverrideAway:
	default:
		return nil, fmt.Errorf("%w: override mode %q", ErrValidation, r.Mode)
	}
	switch r.Type {
	case OverrideNow, OverrideTimer, OverrideFromTo, OverrideConstant:
	default:
		return nil, fmt.Errorf("%w: override type %q", ErrValidation, r.Type)
	}
	switch r.TargetType {
	case TargetGlobal, TargetZone, TargetComponent:
	default:
		return nil, fmt.Errorf("%w: override target %q", ErrValidation, r.TargetType)
	}

	target := orNoValue(r.TargetID)
	if r.TargetType != TargetGlobal && target == NoValue {
		return nil, fmt.Errorf("%w: override target id required", ErrValidation)
	}
	start := orNoValue(r.StartTime)
	if err := validateOverrideTime("start", start); err != nil {
		return nil, err
	}
	end := orNoValue(r.EndTime)
	if err := validateOverrideTime("end", end); err != nil {
		return nil, err
	}

	return []string{
		"1",
		string(r.Mode),
		string(r.Type),
		end,
		start,
		string(r.TargetType),
		target,
	}, nil
}

// CreateOverride asks the hub to add an override. The hub announces it with
// a B03 message.
func (h *Hub) CreateOverride(ctx context.Context, r OverrideRequest) error {
	args, err := r.args()
	if err != nil {
		return err
	}
	return h.Send(ctx, CmdAddOverride, args...)
}

// AddWeekProfile uploads a new week profile, for example one made by
// BuildWeekProfile. The hub assigns its id.
func (h *Hub) AddWeekProfile(ctx context.Context, w WeekProfile) error {
	if err := ValidateProfileEntries(w.entries); err != nil {
		return err
	}
	w.ID = NewWeekProfileID
	return h.Send(ctx, CmdAddWeekProfile, w.commandArgs()...)
}

// UpdateWeekProfile replaces the entries and name of an existing profile.
func (h *Hub) UpdateWeekProfile(ctx context.Context, w WeekProfile) error {
	if _, ok := h.store.WeekProfile(w.ID); !ok {
		return fmt.Errorf("%w: unknown week profile %q", ErrValidation, w.ID)
	}
	if err := ValidateProfileEntries(w.entries); err != nil {
		return err
	}
	return h.Send(ctx, CmdUpdateWeekProfile, w.commandArgs()...)
}

// RemoveWeekProfile deletes a week profile on the hub.
func (h *Hub) RemoveWeekProfile(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: week profile id required", ErrValidation)
	}
	return h.Send(ctx, CmdRemoveWeekProfile, id)
}

// Refresh requests a full refresh. The Store is cleared and rebuilt when
// the hub answers.
func (h *Hub) Refresh(ctx context.Context) error {
	return h.Send(ctx, CmdGetAllInfo)
}

func orNoValue(s string) string {
	if s == "" {
		return NoValue
	}
	return s
}
