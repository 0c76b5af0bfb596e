// Package classify implements the stateless sender classifier (spec §4.1).
package classify

import (
	"net"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

var _ ports.Classifier = (*Classifier)(nil)

// Classifier classifies a datagram's peer identity exclusively by its
// transport source IP. No MAVLink field ever influences this decision.
type Classifier struct {
	trustedGCS net.IP
	strict     bool
}

// New builds a Classifier. trustedGCS may be nil only when strict is
// false; otherwise the caller must have already failed startup with a
// ConfigError (spec §4.1).
func New(trustedGCS net.IP, strict bool) *Classifier {
	return &Classifier{trustedGCS: trustedGCS, strict: strict}
}

func (c *Classifier) Classify(addr domain.PeerAddr) domain.PeerIdentity {
	if c.trustedGCS != nil && addr.IP.Equal(c.trustedGCS) {
		return domain.PeerTrustedGCS
	}
	return domain.PeerUntrusted
}
