package mavlink

import (
	"encoding/binary"
	"math"

	"github.com/aegis-gateway/aegis/internal/core/domain"
)

func f32(b []byte, off int) float64 {
	if off+4 > len(b) {
		return 0
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off:])))
}

func u32(b []byte, off int) uint32 {
	if off+4 > len(b) {
		return 0
	}
	return binary.LittleEndian.Uint32(b[off:])
}

func i32(b []byte, off int) int32 {
	return int32(u32(b, off))
}

func u16(b []byte, off int) uint16 {
	if off+2 > len(b) {
		return 0
	}
	return binary.LittleEndian.Uint16(b[off:])
}

func i16(b []byte, off int) int16 {
	return int16(u16(b, off))
}

func u8(b []byte, off int) uint8 {
	if off >= len(b) {
		return 0
	}
	return b[off]
}

// decodePayload decodes the fields AEGIS's pipeline needs and derives the
// semantic command-kind. Fields not listed here are ignored (spec §3: the
// parameter map only carries what the named-parameter interface exposes).
func decodePayload(mt domain.MessageType, payload []byte) (map[string]domain.ParamValue, domain.CommandKind) {
	p := map[string]domain.ParamValue{}

	switch mt {
	case domain.MsgHeartbeat:
		p["custom_mode"] = domain.NumParam(float64(u32(payload, 0)))
		p["base_mode"] = domain.NumParam(float64(u8(payload, 6)))
		return p, commandKindForMessageType(mt)

	case domain.MsgCommandLong:
		// Wire order: param1..7 float32 (0..27), command u16 (28..29),
		// target_system (30), target_component (31), confirmation (32).
		for i := 0; i < 7; i++ {
			p[paramName(i+1)] = domain.NumParam(f32(payload, i*4))
		}
		cmdID := u16(payload, 28)
		p["target_system"] = domain.NumParam(float64(u8(payload, 30)))
		p["target_component"] = domain.NumParam(float64(u8(payload, 31)))
		p["command"] = domain.NumParam(float64(cmdID))
		switch cmdID {
		case cmdComponentArmDisarm:
			p["arm"] = domain.NumParam(f32(payload, 0))
		case cmdNavWaypoint, cmdNavTakeoff, cmdNavLand:
			// Navigation commands carry lat/lon/alt in param5..7; surface
			// them under the names the detectors bound-check.
			p["latitude"] = domain.NumParam(f32(payload, 16))
			p["longitude"] = domain.NumParam(f32(payload, 20))
			p["altitude"] = domain.NumParam(f32(payload, 24))
		}
		return p, commandKindForMAVCmd(cmdID)

	case domain.MsgCommandInt:
		// Wire order: param1..4 float32 (0..15), x i32 (16), y i32 (20),
		// z float32 (24), command u16 (28), target_system (30),
		// target_component (31), frame (32), current (33), autocontinue (34).
		cmdID := u16(payload, 28)
		p["param1"] = domain.NumParam(f32(payload, 0))
		p["param2"] = domain.NumParam(f32(payload, 4))
		p["param3"] = domain.NumParam(f32(payload, 8))
		p["param4"] = domain.NumParam(f32(payload, 12))
		p["latitude"] = domain.NumParam(float64(i32(payload, 16)) / 1e7)
		p["longitude"] = domain.NumParam(float64(i32(payload, 20)) / 1e7)
		p["altitude"] = domain.NumParam(f32(payload, 24))
		p["command"] = domain.NumParam(float64(cmdID))
		return p, commandKindForMAVCmd(cmdID)

	case domain.MsgSetMode:
		// Wire order: custom_mode u32 (0), target_system (4), base_mode (5).
		p["custom_mode"] = domain.NumParam(float64(u32(payload, 0)))
		p["target_system"] = domain.NumParam(float64(u8(payload, 4)))
		p["base_mode"] = domain.NumParam(float64(u8(payload, 5)))
		return p, domain.KindModeChange

	case domain.MsgParamSet:
		p["param_value"] = domain.NumParam(f32(payload, 0))
		p["target_system"] = domain.NumParam(float64(u8(payload, 4)))
		p["target_component"] = domain.NumParam(float64(u8(payload, 5)))
		if len(payload) >= 22 {
			p["param_id"] = domain.TextParam(trimNul(payload[6:22]))
		}
		return p, domain.KindParameterChange

	case domain.MsgMissionCount:
		p["count"] = domain.NumParam(float64(u16(payload, 0)))
		return p, domain.KindMissionUpdate

	case domain.MsgMissionClearAll:
		return p, domain.KindMissionUpdate

	case domain.MsgMissionItem, domain.MsgMissionItemInt:
		// Wire order puts the four params and x/y/z first; seq u16 at 28.
		p["seq"] = domain.NumParam(float64(u16(payload, 28)))
		return p, domain.KindMissionUpdate

	case domain.MsgManualControl:
		// Wire order: x i16 (0), y (2), z (4), r (6), buttons u16 (8),
		// target (10).
		p["x"] = domain.NumParam(float64(i16(payload, 0)))
		p["y"] = domain.NumParam(float64(i16(payload, 2)))
		p["z"] = domain.NumParam(float64(i16(payload, 4)))
		p["r"] = domain.NumParam(float64(i16(payload, 6)))
		return p, domain.KindManual

	case domain.MsgSysStatus:
		// battery_remaining is a percentage (-1 when unknown) at offset 30.
		if len(payload) > 30 {
			if pct := int8(payload[30]); pct >= 0 {
				p["battery"] = domain.NumParam(float64(pct) / 100.0)
			}
		}
		return p, domain.KindTelemetryRequest

	case domain.MsgGPSRawInt:
		p["latitude"] = domain.NumParam(float64(i32(payload, 8)) / 1e7)
		p["longitude"] = domain.NumParam(float64(i32(payload, 12)) / 1e7)
		p["altitude"] = domain.NumParam(float64(i32(payload, 16)) / 1000.0)
		return p, domain.KindTelemetryRequest

	case domain.MsgSetPositionTargetLoc:
		p["x"] = domain.NumParam(f32(payload, 4))
		p["y"] = domain.NumParam(f32(payload, 8))
		p["z"] = domain.NumParam(f32(payload, 12))
		p["vx"] = domain.NumParam(f32(payload, 16))
		p["vy"] = domain.NumParam(f32(payload, 20))
		p["vz"] = domain.NumParam(f32(payload, 24))
		// z is down-positive in the NED frame; altitude is its negation.
		p["altitude"] = domain.NumParam(-f32(payload, 12))
		p["velocity"] = domain.NumParam(math.Hypot(f32(payload, 16), f32(payload, 20)))
		return p, domain.KindNavigation

	case domain.MsgSetPositionTargetGlob:
		// Wire order matches the local variant except x/y are scaled
		// integer lat/lon.
		p["latitude"] = domain.NumParam(float64(i32(payload, 4)) / 1e7)
		p["longitude"] = domain.NumParam(float64(i32(payload, 8)) / 1e7)
		p["altitude"] = domain.NumParam(f32(payload, 12))
		p["vx"] = domain.NumParam(f32(payload, 16))
		p["vy"] = domain.NumParam(f32(payload, 20))
		p["vz"] = domain.NumParam(f32(payload, 24))
		p["velocity"] = domain.NumParam(math.Hypot(f32(payload, 16), f32(payload, 20)))
		return p, domain.KindNavigation

	case domain.MsgSetAttitudeTarget:
		p["roll"] = domain.NumParam(f32(payload, 20))
		p["pitch"] = domain.NumParam(f32(payload, 24))
		p["yaw"] = domain.NumParam(f32(payload, 28))
		p["throttle"] = domain.NumParam(f32(payload, 32))
		return p, domain.KindNavigation

	default:
		return p, domain.KindUnknown
	}
}

func paramName(i int) string {
	switch i {
	case 1:
		return "param1"
	case 2:
		return "param2"
	case 3:
		return "param3"
	case 4:
		return "param4"
	case 5:
		return "param5"
	case 6:
		return "param6"
	default:
		return "param7"
	}
}

func trimNul(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
