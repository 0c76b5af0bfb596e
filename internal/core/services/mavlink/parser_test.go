package mavlink

import (
	"testing"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip_RTL(t *testing.T) {
	p := NewParser()
	cmd := NewRTLCommand(1, 1, 7, 1000)

	raw, err := p.Encode(cmd)
	require.NoError(t, err)

	parsed, err := p.Parse(domain.PeerAddr{}, raw, 2000)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	require.Equal(t, domain.KindEmergency, parsed[0].Kind)
	got, ok := parsed[0].ParamFloat("command")
	require.True(t, ok)
	require.Equal(t, float64(cmdNavReturnToLaunch), got)
}

func TestParse_MalformedFrameResyncs(t *testing.T) {
	p := NewParser()
	cmd := NewRTLCommand(1, 1, 1, 0)
	raw, err := p.Encode(cmd)
	require.NoError(t, err)

	garbage := append([]byte{0x01, 0x02, 0x03}, raw...)
	parsed, err := p.Parse(domain.PeerAddr{}, garbage, 0)
	require.Error(t, err)
	require.Len(t, parsed, 1)
}

func TestParse_PartialFrameBuffered(t *testing.T) {
	p := NewParser()
	cmd := NewRTLCommand(1, 1, 1, 0)
	raw, err := p.Encode(cmd)
	require.NoError(t, err)

	first, err := p.Parse(domain.PeerAddr{}, raw[:5], 0)
	require.NoError(t, err)
	require.Empty(t, first)

	second, err := p.Parse(domain.PeerAddr{}, raw[5:], 0)
	require.NoError(t, err)
	require.Len(t, second, 1)
}
