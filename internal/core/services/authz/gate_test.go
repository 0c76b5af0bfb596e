package authz

import (
	"testing"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestGate_TrustedAdmitsEverything(t *testing.T) {
	g := New()
	admitted, event := g.Admit(domain.PeerTrustedGCS, domain.MsgCommandLong)
	require.True(t, admitted)
	require.False(t, event)
}

func TestGate_UntrustedCommandTypesBlockedAndLogged(t *testing.T) {
	g := New()
	for _, mt := range []domain.MessageType{
		domain.MsgCommandLong, domain.MsgCommandInt, domain.MsgSetMode,
		domain.MsgMissionItem, domain.MsgMissionItemInt, domain.MsgMissionCount,
		domain.MsgMissionClearAll, domain.MsgSetPositionTargetLoc,
		domain.MsgSetPositionTargetGlob, domain.MsgSetAttitudeTarget,
	} {
		admitted, event := g.Admit(domain.PeerUntrusted, mt)
		require.False(t, admitted, "%s", mt)
		require.True(t, event, "%s", mt)
	}
}

func TestGate_UntrustedHeartbeatDroppedSilently(t *testing.T) {
	g := New()
	admitted, event := g.Admit(domain.PeerUntrusted, domain.MsgHeartbeat)
	require.False(t, admitted)
	require.False(t, event)
}
