package nobo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validZoneRecord() ZoneRecord {
	return ZoneRecord{
		ID:              "1",
		Name:            "Living",
		WeekProfileID:   "1",
		ComfortC:        "22",
		EcoC:            "18",
		OverrideAllowed: "1",
	}
}

func TestNewZone_Valid(t *testing.T) {
	z, err := NewZone(validZoneRecord())
	require.NoError(t, err)

	assert.Equal(t, Zone{
		ID:              "1",
		Name:            "Living",
		WeekProfileID:   "1",
		ComfortC:        22,
		EcoC:            18,
		OverrideAllowed: true,
	}, z)
}

func TestNewZone_ComfortEqualToEco(t *testing.T) {
	r := validZoneRecord()
	r.ComfortC, r.EcoC = "20", "20"

	_, err := NewZone(r)
	assert.NoError(t, err)
}

func TestNewZone_Invalid(t *testing.T) {
	cases := map[string]func(*ZoneRecord){
		"comfort below eco": func(r *ZoneRecord) { r.ComfortC, r.EcoC = "18", "22" },
		"comfort too high":  func(r *ZoneRecord) { r.ComfortC = "31" },
		"eco too low":       func(r *ZoneRecord) { r.EcoC = "6" },
		"not numeric":       func(r *ZoneRecord) { r.ComfortC = "warm" },
		"missing temps":     func(r *ZoneRecord) { r.ComfortC, r.EcoC = "", "" },
		"missing id":        func(r *ZoneRecord) { r.ID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := validZoneRecord()
			mutate(&r)

			_, err := NewZone(r)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestNewZone_RangeBoundaries(t *testing.T) {
	r := validZoneRecord()
	r.ComfortC, r.EcoC = "30", "7"

	z, err := NewZone(r)
	require.NoError(t, err)
	assert.Equal(t, 30, z.ComfortC)
	assert.Equal(t, 7, z.EcoC)
}

func TestZonePatch_ReturnsNewValue(t *testing.T) {
	z, err := NewZone(validZoneRecord())
	require.NoError(t, err)

	comfort, eco := 24, 19
	next, err := z.Patch(ZonePatch{ComfortC: &comfort, EcoC: &eco})
	require.NoError(t, err)

	assert.Equal(t, 24, next.ComfortC)
	assert.Equal(t, 19, next.EcoC)
	assert.Equal(t, 22, z.ComfortC)
	assert.Equal(t, 18, z.EcoC)
}

func TestZonePatch_InvalidKeepsPrevious(t *testing.T) {
	z, err := NewZone(validZoneRecord())
	require.NoError(t, err)

	eco := 23
	next, err := z.Patch(ZonePatch{EcoC: &eco})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, z, next)

	comfort := 35
	next, err = z.Patch(ZonePatch{ComfortC: &comfort})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, z, next)
}

func TestZone_UpdateArgs(t *testing.T) {
	z, err := NewZone(validZoneRecord())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "Living", "1", "22", "18", "1", "-1"}, z.updateArgs())

	allowed := false
	z, err = z.Patch(ZonePatch{OverrideAllowed: &allowed})
	require.NoError(t, err)
	assert.Equal(t, "0", z.updateArgs()[5])
}

func TestNewComponent_AnnotatesKnownModel(t *testing.T) {
	c, err := NewComponent(ComponentRecord{Serial: "186170024143", Name: "Heater", ZoneID: "1"})
	require.NoError(t, err)

	require.NotNil(t, c.Model)
	assert.Equal(t, "186", c.ModelID())
	assert.Equal(t, "DCU-1R", c.Model.Name)
	assert.Equal(t, CategoryThermostatHeater, c.Model.Category)
	assert.True(t, c.InZone())
}

func TestNewComponent_UnknownModel(t *testing.T) {
	c, err := NewComponent(ComponentRecord{Serial: "999000000000", ZoneID: "-1"})
	require.NoError(t, err)

	assert.Nil(t, c.Model)
	assert.False(t, c.InZone())
}

func TestNewComponent_RequiresSerial(t *testing.T) {
	_, err := NewComponent(ComponentRecord{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidators(t *testing.T) {
	assert.True(t, IsValidDatetime("20240101120000"))
	assert.False(t, IsValidDatetime("202401011200"))
	assert.False(t, IsValidDatetime("2024010112000x"))

	assert.True(t, IsQuarterMinute(0))
	assert.True(t, IsQuarterMinute(45))
	assert.False(t, IsQuarterMinute(10))

	assert.NoError(t, ValidateTemperature("comfort", 7))
	assert.ErrorIs(t, ValidateTemperature("comfort", 31), ErrValidation)
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, "20240102030405", FormatTimestamp(ts))
	assert.True(t, IsValidDatetime(FormatTimestamp(ts)))
}

func TestOverrideRequest_Args(t *testing.T) {
	args, err := OverrideRequest{
		Mode:       OverrideComfort,
		Type:       OverrideConstant,
		TargetType: TargetZone,
		TargetID:   "1",
	}.args()
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "1", "3", "-1", "-1", "1", "1"}, args)
}

func TestOverrideRequest_FromTo(t *testing.T) {
	args, err := OverrideRequest{
		Mode:       OverrideEco,
		Type:       OverrideFromTo,
		TargetType: TargetGlobal,
		StartTime:  "20240101120000",
		EndTime:    "20240101184500",
	}.args()
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "2", "20240101184500", "20240101120000", "0", "-1"}, args)
}

func TestOverrideRequest_Invalid(t *testing.T) {
	base := OverrideRequest{Mode: OverrideAway, Type: OverrideNow, TargetType: TargetGlobal}

	cases := map[string]func(*OverrideRequest){
		"unknown mode":         func(r *OverrideRequest) { r.Mode = "9" },
		"unknown type":         func(r *OverrideRequest) { r.Type = "" },
		"unknown target":       func(r *OverrideRequest) { r.TargetType = "5" },
		"zone without id":      func(r *OverrideRequest) { r.TargetType = TargetZone },
		"start not 14 digits":  func(r *OverrideRequest) { r.StartTime = "202401011200" },
		"end off quarter hour": func(r *OverrideRequest) { r.EndTime = "20240101121000" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := base
			mutate(&r)

			_, err := r.args()
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
