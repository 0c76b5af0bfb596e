// Package authz implements the sender x message-type authorization
// matrix (spec §4.3).
package authz

import (
	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

var _ ports.AuthorizationGate = (*Gate)(nil)

// Gate enforces: trusted-gcs admits every frame; untrusted senders have
// command-bearing message types blocked-and-logged, and everything else
// (telemetry, heartbeats) dropped silently, so an adversary cannot
// pollute the audit log with cheap heartbeats while genuine command
// attempts are still recorded (spec §4.3's stated rationale).
//
// The matrix is keyed on the wire MessageType, not the derived
// CommandKind: a COMMAND_LONG carrying a bogus or unclassified MAV_CMD
// id is still a command attempt and must be logged, which a kind-based
// lookup would miss (it classifies to the unknown kind).
type Gate struct {
	blockedTypes map[domain.MessageType]bool
}

func New() *Gate {
	blocked := map[domain.MessageType]bool{
		domain.MsgCommandLong:           true,
		domain.MsgCommandInt:            true,
		domain.MsgSetMode:               true,
		domain.MsgMissionItem:           true,
		domain.MsgMissionItemInt:        true,
		domain.MsgMissionCount:          true,
		domain.MsgMissionClearAll:       true,
		domain.MsgSetPositionTargetLoc:  true,
		domain.MsgSetPositionTargetGlob: true,
		domain.MsgSetAttitudeTarget:     true,
	}
	return &Gate{blockedTypes: blocked}
}

func (g *Gate) Admit(peer domain.PeerIdentity, mt domain.MessageType) (admitted bool, securityEvent bool) {
	if peer == domain.PeerTrustedGCS {
		return true, false
	}
	if g.blockedTypes[mt] {
		return false, true
	}
	return false, false
}
