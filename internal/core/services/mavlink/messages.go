package mavlink

import "github.com/aegis-gateway/aegis/internal/core/domain"

// Message ids and their CRC_EXTRA seeds, taken from the public MAVLink v2
// "common" dialect. AEGIS does not extend the dialect (spec §6); this is
// the closed subset of message ids the gateway needs to understand.
const (
	msgIDHeartbeat       uint32 = 0
	msgIDSysStatus       uint32 = 1
	msgIDGPSRawInt       uint32 = 24
	msgIDMissionItem     uint32 = 39
	msgIDSetMode         uint32 = 11
	msgIDParamSet        uint32 = 23
	msgIDMissionCount    uint32 = 44
	msgIDMissionClearAll uint32 = 45
	msgIDManualControl   uint32 = 69
	msgIDMissionItemInt  uint32 = 73
	msgIDCommandInt      uint32 = 75
	msgIDCommandLong     uint32 = 76
	msgIDSetAttitudeTgt  uint32 = 82
	msgIDSetPosTgtLocal  uint32 = 84
	msgIDSetPosTgtGlobal uint32 = 86
)

var crcExtra = map[uint32]byte{
	msgIDHeartbeat:       50,
	msgIDSysStatus:       124,
	msgIDSetMode:         89,
	msgIDParamSet:        168,
	msgIDGPSRawInt:       24,
	msgIDMissionItem:     254,
	msgIDMissionCount:    221,
	msgIDMissionClearAll: 232,
	msgIDManualControl:   243,
	msgIDMissionItemInt:  38,
	msgIDCommandInt:      158,
	msgIDCommandLong:     152,
	msgIDSetAttitudeTgt:  49,
	msgIDSetPosTgtLocal:  143,
	msgIDSetPosTgtGlobal: 5,
}

var messageTypeByID = map[uint32]domain.MessageType{
	msgIDHeartbeat:       domain.MsgHeartbeat,
	msgIDSysStatus:       domain.MsgSysStatus,
	msgIDGPSRawInt:       domain.MsgGPSRawInt,
	msgIDMissionItem:     domain.MsgMissionItem,
	msgIDSetMode:         domain.MsgSetMode,
	msgIDParamSet:        domain.MsgParamSet,
	msgIDMissionCount:    domain.MsgMissionCount,
	msgIDMissionClearAll: domain.MsgMissionClearAll,
	msgIDManualControl:   domain.MsgManualControl,
	msgIDMissionItemInt:  domain.MsgMissionItemInt,
	msgIDCommandInt:      domain.MsgCommandInt,
	msgIDCommandLong:     domain.MsgCommandLong,
	msgIDSetAttitudeTgt:  domain.MsgSetAttitudeTarget,
	msgIDSetPosTgtLocal:  domain.MsgSetPositionTargetLoc,
	msgIDSetPosTgtGlobal: domain.MsgSetPositionTargetGlob,
}

// MAV_CMD ids relevant to command-kind classification (public MAVLink
// common dialect).
const (
	cmdNavTakeoff          = 22
	cmdNavLand             = 21
	cmdNavReturnToLaunch   = 20
	cmdNavWaypoint         = 16
	cmdComponentArmDisarm  = 400
	cmdDoSetMode           = 176
	cmdDoSetParameter      = 180
	cmdRequestMessage      = 512
)

// commandKindForMAVCmd classifies a COMMAND_LONG/COMMAND_INT's MAV_CMD id
// into AEGIS's semantic command-kind set (spec §3's table lookup).
func commandKindForMAVCmd(cmdID uint16) domain.CommandKind {
	switch cmdID {
	case cmdNavReturnToLaunch:
		return domain.KindEmergency
	case cmdNavTakeoff, cmdNavLand:
		return domain.KindTakeoffLand
	case cmdNavWaypoint:
		return domain.KindNavigation
	case cmdComponentArmDisarm:
		return domain.KindArmDisarm
	case cmdDoSetMode:
		return domain.KindModeChange
	case cmdDoSetParameter:
		return domain.KindParameterChange
	case cmdRequestMessage:
		return domain.KindTelemetryRequest
	default:
		return domain.KindUnknown
	}
}

// commandKindForMessageType classifies message types that are not
// COMMAND_LONG/COMMAND_INT (spec §4.2: "by table lookup (message-type +
// optional command id) with the unknown catch-all").
func commandKindForMessageType(mt domain.MessageType) domain.CommandKind {
	switch mt {
	case domain.MsgHeartbeat, domain.MsgSysStatus, domain.MsgGPSRawInt:
		return domain.KindTelemetryRequest
	case domain.MsgSetMode:
		return domain.KindModeChange
	case domain.MsgMissionItem, domain.MsgMissionItemInt, domain.MsgMissionCount, domain.MsgMissionClearAll:
		return domain.KindMissionUpdate
	case domain.MsgParamSet:
		return domain.KindParameterChange
	case domain.MsgManualControl:
		return domain.KindManual
	case domain.MsgSetPositionTargetLoc, domain.MsgSetPositionTargetGlob, domain.MsgSetAttitudeTarget:
		return domain.KindNavigation
	default:
		return domain.KindUnknown
	}
}
