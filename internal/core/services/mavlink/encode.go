package mavlink

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/aegis-gateway/aegis/internal/core/domain"
)

// Encode serialises a ParsedCommand back into MAVLink v2 wire bytes. Only
// COMMAND_LONG is supported; other message types return an error. The
// gateway uses it to emit return-to-launch when the Decision Engine
// reaches `rtl` (spec §2's "emit RTL" egress behavior) and to re-encode
// a clamped COMMAND_LONG under `constrain`. `accept` traffic, and
// constrained traffic of other message types, is relayed as the original
// bytes captured at parse time.
func (p *Parser) Encode(cmd domain.ParsedCommand) ([]byte, error) {
	if cmd.MessageType != domain.MsgCommandLong {
		return nil, fmt.Errorf("mavlink: encode only supports command-long, got %s", cmd.MessageType)
	}

	payload := make([]byte, 33)
	for i := 1; i <= 7; i++ {
		v, _ := cmd.ParamFloat(paramName(i))
		binary.LittleEndian.PutUint32(payload[(i-1)*4:], math.Float32bits(float32(v)))
	}
	cmdID, _ := cmd.ParamFloat("command")
	binary.LittleEndian.PutUint16(payload[28:], uint16(cmdID))
	ts, _ := cmd.ParamFloat("target_system")
	tc, _ := cmd.ParamFloat("target_component")
	payload[30] = byte(ts)
	payload[31] = byte(tc)
	confirmation, _ := cmd.ParamFloat("confirmation")
	payload[32] = byte(confirmation)

	header := make([]byte, headerLenV2)
	header[0] = magicV2
	header[1] = byte(len(payload))
	header[2] = 0 // incompat_flags: unsigned
	header[3] = 0 // compat_flags
	header[4] = cmd.SeqNum
	header[5] = cmd.SourceSystemID
	header[6] = cmd.SourceComponentID
	header[7] = byte(msgIDCommandLong)
	header[8] = byte(msgIDCommandLong >> 8)
	header[9] = byte(msgIDCommandLong >> 16)

	frame := append(header, payload...)

	crc := NewX25CRC()
	crc.Accumulate(frame[1:])
	crc.Accumulate([]byte{crcExtra[msgIDCommandLong]})
	crcBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(crcBytes, crc.Sum())

	return append(frame, crcBytes...), nil
}

// NewRTLCommand builds a ParsedCommand for MAV_CMD_NAV_RETURN_TO_LAUNCH,
// suitable for Encode, used when the Decision Engine emits `rtl`.
func NewRTLCommand(sysID, compID uint8, seq uint8, ingressNS int64) domain.ParsedCommand {
	return domain.ParsedCommand{
		MessageType:       domain.MsgCommandLong,
		MessageID:         msgIDCommandLong,
		SourceSystemID:    sysID,
		SourceComponentID: compID,
		Kind:              domain.KindEmergency,
		Params: map[string]domain.ParamValue{
			"command":          domain.NumParam(cmdNavReturnToLaunch),
			"target_system":    domain.NumParam(float64(sysID)),
			"target_component": domain.NumParam(float64(compID)),
		},
		IngressTimeNS: ingressNS,
		SeqNum:        seq,
	}
}
