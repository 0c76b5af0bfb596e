package classify

import (
	"net"
	"testing"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	trusted := net.ParseIP("10.0.0.5")
	c := New(trusted, true)

	require.Equal(t, domain.PeerTrustedGCS, c.Classify(domain.PeerAddr{IP: net.ParseIP("10.0.0.5")}))
	require.Equal(t, domain.PeerUntrusted, c.Classify(domain.PeerAddr{IP: net.ParseIP("10.0.0.6")}))
}

func TestClassify_NoTrustedConfigured(t *testing.T) {
	c := New(nil, false)
	require.Equal(t, domain.PeerUntrusted, c.Classify(domain.PeerAddr{IP: net.ParseIP("1.2.3.4")}))
}
