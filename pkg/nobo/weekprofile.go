package nobo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// midnight is the time field of an entry that starts a new weekday.
	midnight = "0000"

	// NewWeekProfileID is the id sent when adding a profile; the hub assigns
	// the real one.
	NewWeekProfileID = "0"
)

// profileEntry matches HHMM followed by a mode code. The hour bound is looser
// than a calendar hour; the hub accepts the same pattern.
var profileEntry = regexp.MustCompile(`^[0-2][0-9][0-5][0-9][0124]$`)

// ScheduleWeekdays is the weekday order of a week profile.
var ScheduleWeekdays = [7]time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

var scheduleCodeToMode = map[byte]Mode{
	'0': ModeEco,
	'1': ModeComfort,
	'2': ModeAway,
	'4': ModeOff,
}

var scheduleModeToCode = map[Mode]byte{
	ModeEco:     '0',
	ModeComfort: '1',
	ModeAway:    '2',
	ModeOff:     '4',
}

// WeekProfile is a weekly schedule encoded as HHMM+mode entries, with one
// 0000 entry opening each weekday, Monday first.
type WeekProfile struct {
	ID      string
	Name    string
	entries []string
}

// NewWeekProfile builds a validated WeekProfile from its wire record.
func NewWeekProfile(r WeekProfileRecord) (WeekProfile, error) {
	if r.ID == "" {
		return WeekProfile{}, fmt.Errorf("%w: week profile without id", ErrValidation)
	}
	if err := ValidateProfileEntries(r.Entries); err != nil {
		return WeekProfile{}, fmt.Errorf("week profile %s: %w", r.ID, err)
	}
	return WeekProfile{
		ID:      r.ID,
		Name:    r.Name,
		entries: append([]string(nil), r.Entries...),
	}, nil
}

// ValidateProfileEntries checks entry shape and that exactly seven entries
// start at midnight, the first of them opening Monday.
func ValidateProfileEntries(entries []string) error {
	if len(entries) < 7 {
		return fmt.Errorf("%w: week profile needs at least 7 entries, got %d", ErrValidation, len(entries))
	}
	if !strings.HasPrefix(entries[0], midnight) {
		return fmt.Errorf("%w: week profile must start at 0000, got %q", ErrValidation, entries[0])
	}
	midnights := 0
	for _, e := range entries {
		if !profileEntry.MatchString(e) {
			return fmt.Errorf("%w: bad week profile entry %q", ErrValidation, e)
		}
		if strings.HasPrefix(e, midnight) {
			midnights++
		}
	}
	if midnights != 7 {
		return fmt.Errorf("%w: week profile has %d midnight entries, want 7", ErrValidation, midnights)
	}
	return nil
}

// Entries returns a copy of the encoded entries.
func (w WeekProfile) Entries() []string {
	return append([]string(nil), w.entries...)
}

// Encode renders the entries the way they travel on the wire.
func (w WeekProfile) Encode() string {
	return strings.Join(w.entries, ",")
}

// StatusAt returns the scheduled mode at t, evaluated in t's location.
func (w WeekProfile) StatusAt(t time.Time) Mode {
	if len(w.entries) == 0 {
		return ModeNormal
	}
	weekday := (int(t.Weekday()) + 6) % 7
	target := t.Hour()*100 + t.Minute()

	state := w.entries[0][4]
	day := 0
	for _, e := range w.entries[1:] {
		if strings.HasPrefix(e, midnight) {
			day++
		}
		if day == weekday && entryTime(e) <= target {
			state = e[4]
		}
	}
	return scheduleCodeToMode[state]
}

func entryTime(e string) int {
	hhmm, _ := strconv.Atoi(e[:4])
	return hhmm
}

// Segment is one schedule change within a day.
type Segment struct {
	Time string // HH:MM
	Mode Mode
}

// Timetable holds the ordered segments of each weekday.
type Timetable map[time.Weekday][]Segment

// Timetable expands the entries into per-weekday segments.
func (w WeekProfile) Timetable() Timetable {
	tt := make(Timetable, len(ScheduleWeekdays))
	day := 0
	for _, e := range w.entries {
		if strings.HasPrefix(e, midnight) && len(tt[ScheduleWeekdays[day]]) > 0 {
			day++
			if day == len(ScheduleWeekdays) {
				break
			}
		}
		wd := ScheduleWeekdays[day]
		tt[wd] = append(tt[wd], Segment{
			Time: e[0:2] + ":" + e[2:4],
			Mode: scheduleCodeToMode[e[4]],
		})
	}
	return tt
}

// BuildWeekProfile encodes a timetable. A day whose first segment is not at
// 00:00 gets a leading eco segment. Every time must fall on a quarter hour.
// The returned profile carries NewWeekProfileID.
func BuildWeekProfile(name string, tt Timetable) (WeekProfile, error) {
	var entries []string
	for _, wd := range ScheduleWeekdays {
		segs := tt[wd]
		if len(segs) == 0 || segs[0].Time != "00:00" {
			segs = append([]Segment{{Time: "00:00", Mode: ModeEco}}, segs...)
		}
		for _, seg := range segs {
			h, m, err := parseSegmentTime(seg.Time)
			if err != nil {
				return WeekProfile{}, fmt.Errorf("%s: %w", wd, err)
			}
			if !IsQuarterMinute(m) {
				return WeekProfile{}, fmt.Errorf("%w: %s time %s not on a 15-minute boundary", ErrValidation, wd, seg.Time)
			}
			code, ok := scheduleModeToCode[seg.Mode]
			if !ok {
				return WeekProfile{}, fmt.Errorf("%w: %s mode %q not schedulable", ErrValidation, wd, seg.Mode)
			}
			entries = append(entries, fmt.Sprintf("%02d%02d%c", h, m, code))
		}
	}
	if err := ValidateProfileEntries(entries); err != nil {
		return WeekProfile{}, err
	}
	return WeekProfile{ID: NewWeekProfileID, Name: name, entries: entries}, nil
}

func parseSegmentTime(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: time %q is not HH:MM", ErrValidation, s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", ErrValidation, s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", ErrValidation, s)
	}
	return h, m, nil
}

// commandArgs is the A02/U02 argument list for w.
func (w WeekProfile) commandArgs() []string {
	return []string{w.ID, w.Name, w.Encode()}
}
