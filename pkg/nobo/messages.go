package nobo

import (
	"fmt"
	"strings"
)

// Message is a decoded frame received from the hub. The set of
// implementations is closed; switch on the concrete type.
type Message interface {
	Code() ResponseCode
	isMessage()
}

// AllInfoStart (H00) announces a full refresh; every collection is rebuilt
// from the messages that follow.
type AllInfoStart struct{}

// HandshakeEcho is the hub's reply to HANDSHAKE.
type HandshakeEcho struct{}

// ZoneMessage carries a zone for H01, B00 and V00.
type ZoneMessage struct {
	RespCode ResponseCode
	Zone     ZoneRecord
}

// ComponentMessage carries a component for H02, B01 and V01.
type ComponentMessage struct {
	RespCode  ResponseCode
	Component ComponentRecord
}

// WeekProfileMessage carries a week profile for H03, B02 and V02.
type WeekProfileMessage struct {
	RespCode ResponseCode
	Profile  WeekProfileRecord
}

// OverrideMessage carries an override for H04 and B03.
type OverrideMessage struct {
	RespCode ResponseCode
	Override Override
}

// HubInfoMessage carries hub metadata for H05 and V03. H05 closes a full
// refresh.
type HubInfoMessage struct {
	RespCode ResponseCode
	Hub      HubInfo
}

// InternetAccessMessage (V06) reports the hub's cloud access setting.
type InternetAccessMessage struct {
	Access InternetAccess
}

type ZoneRemoved struct{ ZoneID string }

type ComponentRemoved struct{ Serial string }

type WeekProfileRemoved struct{ WeekProfileID string }

type OverrideRemoved struct{ OverrideID string }

// TemperatureReading (Y02) is a component's measured temperature. The value
// is TemperatureUnknown when the component has no reading.
type TemperatureReading struct {
	Serial      string
	Temperature string
}

// HubErrorMessage (E00) is an error reported by the hub.
type HubErrorMessage struct {
	Err HubError
}

func (AllInfoStart) Code() ResponseCode { return RespSendingAllInfo }
func (HandshakeEcho) Code() ResponseCode { return RespHandshake }
func (m ZoneMessage) Code() ResponseCode { return m.RespCode }
func (m ComponentMessage) Code() ResponseCode { return m.RespCode }
func (m WeekProfileMessage) Code() ResponseCode { return m.RespCode }
func (m OverrideMessage) Code() ResponseCode { return m.RespCode }
func (m HubInfoMessage) Code() ResponseCode { return m.RespCode }
func (InternetAccessMessage) Code() ResponseCode { return RespUpdateInternetAccess }
func (ZoneRemoved) Code() ResponseCode { return RespRemoveZone }
func (ComponentRemoved) Code() ResponseCode { return RespRemoveComponent }
func (WeekProfileRemoved) Code() ResponseCode { return RespRemoveWeekProfile }
func (OverrideRemoved) Code() ResponseCode { return RespRemoveOverride }
func (TemperatureReading) Code() ResponseCode { return RespComponentTemperature }
func (HubErrorMessage) Code() ResponseCode { return RespError }
func (AllInfoStart) isMessage() {}
func (HandshakeEcho) isMessage() {}
func (ZoneMessage) isMessage() {}
func (ComponentMessage) isMessage() {}
func (WeekProfileMessage) isMessage() {}
func (OverrideMessage) isMessage() {}
func (HubInfoMessage) isMessage() {}
func (InternetAccessMessage) isMessage() {}
func (ZoneRemoved) isMessage() {}
func (ComponentRemoved) isMessage() {}
func (WeekProfileRemoved) isMessage() {}
func (OverrideRemoved) isMessage() {}
func (TemperatureReading) isMessage() {}
func (HubErrorMessage) isMessage() {}

// Decode parses a tokenized frame. Unknown codes fail with ErrUnknownCode.
// Frames shorter than their layout decode with empty fields; entity
// constructors decide whether the result is usable.
func Decode(tokens []string) (Message, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrUnknownCode)
	}
	code := ResponseCode(tokens[0])
	if !code.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCode, tokens[0])
	}
	f := fields(tokens)

	switch code {
	case RespSendingAllInfo:
		return AllInfoStart{}, nil
	case RespHandshake:
		return HandshakeEcho{}, nil

	case RespZoneInfo, RespAddZone, RespUpdateZone:
		return ZoneMessage{RespCode: code, Zone: ZoneRecord{
			ID:                   f(1),
			Name:                 f(2),
			WeekProfileID:        f(3),
			ComfortC:             f(4),
			EcoC:                 f(5),
			OverrideAllowed:      f(6),
			DeprecatedOverrideID: f(7),
		}}, nil

	case RespComponentInfo, RespAddComponent, RespUpdateComponent:
		return ComponentMessage{RespCode: code, Component: ComponentRecord{
			Serial:              f(1),
			Status:              f(2),
			Name:                f(3),
			ReverseOnOff:        f(4),
			ZoneID:              f(5),
			OverrideID:          f(6),
			TempSensorForZoneID: f(7),
		}}, nil

	case RespWeekProfileInfo, RespAddWeekProfile, RespUpdateWeekProfile:
		var entries []string
		if raw := f(3); raw != "" {
			entries = strings.Split(raw, ",")
		}
		return WeekProfileMessage{RespCode: code, Profile: WeekProfileRecord{
			ID:      f(1),
			Name:    f(2),
			Entries: entries,
		}}, nil

	case RespOverrideInfo, RespAddOverride:
		return OverrideMessage{RespCode: code, Override: Override{
			ID:         f(1),
			Mode:       OverrideMode(f(2)),
			Type:       OverrideType(f(3)),
			EndTime:    f(4),
			StartTime:  f(5),
			TargetType: OverrideTarget(f(6)),
			TargetID:   f(7),
		}}, nil

	case RespHubInfo, RespUpdateHubInfo:
		return HubInfoMessage{RespCode: code, Hub: HubInfo{
			Serial:                    f(1),
			Name:                      f(2),
			DefaultAwayOverrideLength: f(3),
			OverrideID:                f(4),
			SoftwareVersion:           f(5),
			HardwareVersion:           f(6),
			ProductionDate:            f(7),
		}}, nil

	case RespUpdateInternetAccess:
		return InternetAccessMessage{Access: InternetAccess{
			Enabled: f(1) == allowedYes,
			Key:     f(2),
		}}, nil

	case RespRemoveZone:
		return ZoneRemoved{ZoneID: f(1)}, nil
	case RespRemoveComponent:
		return ComponentRemoved{Serial: f(1)}, nil
	case RespRemoveWeekProfile:
		return WeekProfileRemoved{WeekProfileID: f(1)}, nil
	case RespRemoveOverride:
		return OverrideRemoved{OverrideID: f(1)}, nil

	case RespComponentTemperature:
		return TemperatureReading{Serial: f(1), Temperature: f(2)}, nil

	case RespError:
		var text string
		if len(tokens) > 2 {
			text = strings.Join(tokens[2:], " ")
		}
		return HubErrorMessage{Err: HubError{Code: f(1), Message: text}}, nil
	}

	return nil, fmt.Errorf("%w: %q has no layout", ErrUnknownCode, code)
}

// fields returns a positional accessor yielding "" past the end of tokens.
func fields(tokens []string) func(int) string {
	return func(i int) string {
		if i < len(tokens) {
			return tokens[i]
		}
		return ""
	}
}
