package nobo

import (
	"fmt"
	"strings"
)

// Constants defined by the Nobø Hub API v1.1
const (
	ProtocolVersion = "1.1"

	DefaultPort   = 27779
	DiscoveryPort = 10000

	// FrameDelimiter terminates every frame in both directions.
	FrameDelimiter = '\r'

	// DiscoveryMarker prefixes every UDP beacon broadcast by a hub.
	DiscoveryMarker = "__NOBOHUB__"

	// NoValue is the wire placeholder for an unset id or timestamp.
	NoValue = "-1"

	// TemperatureUnknown is reported by components without a current reading.
	TemperatureUnknown = "N/A"
)

// Command is a code sent to the hub.
type Command string

const (
	CmdHello     Command = "HELLO"
	CmdReject    Command = "REJECT"
	CmdHandshake Command = "HANDSHAKE"

	CmdAddZone        Command = "A00"
	CmdAddComponent   Command = "A01"
	CmdAddWeekProfile Command = "A02"
	CmdAddOverride    Command = "A03"

	CmdUpdateZone           Command = "U00"
	CmdUpdateComponent      Command = "U01"
	CmdUpdateWeekProfile    Command = "U02"
	CmdUpdateHubInfo        Command = "U03"
	CmdUpdateInternetAccess Command = "U06"

	CmdRemoveZone        Command = "R00"
	CmdRemoveComponent   Command = "R01"
	CmdRemoveWeekProfile Command = "R02"

	CmdGetAllInfo         Command = "G00"
	CmdGetAllZones        Command = "G01"
	CmdGetAllComponents   Command = "G02"
	CmdGetAllWeekProfiles Command = "G03"
	CmdGetActiveOverrides Command = "G04"
)

// ResponseCode is the first token of a frame received from the hub.
type ResponseCode string

const (
	RespSendingAllInfo  ResponseCode = "H00"
	RespZoneInfo        ResponseCode = "H01"
	RespComponentInfo   ResponseCode = "H02"
	RespWeekProfileInfo ResponseCode = "H03"
	RespOverrideInfo    ResponseCode = "H04"
	RespHubInfo         ResponseCode = "H05"
	RespHandshake       ResponseCode = "HANDSHAKE"

	RespAddZone        ResponseCode = "B00"
	RespAddComponent   ResponseCode = "B01"
	RespAddWeekProfile ResponseCode = "B02"
	RespAddOverride    ResponseCode = "B03"

	RespUpdateZone           ResponseCode = "V00"
	RespUpdateComponent      ResponseCode = "V01"
	RespUpdateWeekProfile    ResponseCode = "V02"
	RespUpdateHubInfo        ResponseCode = "V03"
	RespUpdateInternetAccess ResponseCode = "V06"

	RespRemoveZone        ResponseCode = "S00"
	RespRemoveComponent   ResponseCode = "S01"
	RespRemoveWeekProfile ResponseCode = "S02"
	RespRemoveOverride    ResponseCode = "S03"

	RespComponentTemperature ResponseCode = "Y02"

	RespError ResponseCode = "E00"
)

// knownResponses is the closed set of codes Decode accepts.
var knownResponses = map[ResponseCode]struct{}{
	RespSendingAllInfo: {}, RespZoneInfo: {}, RespComponentInfo: {}, RespWeekProfileInfo: {},
	RespOverrideInfo: {}, RespHubInfo: {}, RespHandshake: {},
	RespAddZone: {}, RespAddComponent: {}, RespAddWeekProfile: {}, RespAddOverride: {},
	RespUpdateZone: {}, RespUpdateComponent: {}, RespUpdateWeekProfile: {}, RespUpdateHubInfo: {},
	RespUpdateInternetAccess: {},
	RespRemoveZone: {}, RespRemoveComponent: {}, RespRemoveWeekProfile: {}, RespRemoveOverride: {},
	RespComponentTemperature: {},
	RespError:                {},
}

// Known reports whether c belongs to the supported response vocabulary.
func (c ResponseCode) Known() bool {
	_, ok := knownResponses[c]
	return ok
}

// EncodeCommand serializes a command and its arguments into a single frame.
// Nothing is escaped, so an argument may not contain the frame delimiter and
// only the final argument may contain spaces.
func EncodeCommand(cmd Command, args ...string) ([]byte, error) {
	if cmd == "" {
		return nil, fmt.Errorf("%w: empty command", ErrValidation)
	}
	for i, arg := range args {
		if strings.ContainsRune(arg, FrameDelimiter) {
			return nil, fmt.Errorf("%w: argument %d of %s contains the frame delimiter", ErrValidation, i, cmd)
		}
		if i < len(args)-1 && (arg == "" || strings.ContainsAny(arg, " \t\n")) {
			return nil, fmt.Errorf("%w: argument %d of %s is empty or contains whitespace", ErrValidation, i, cmd)
		}
	}

	var b strings.Builder
	b.WriteString(string(cmd))
	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(arg)
	}
	b.WriteByte(FrameDelimiter)
	return []byte(b.String()), nil
}
