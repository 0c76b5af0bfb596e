package domain

import "net"

// PeerIdentity is derived from a datagram's transport source address
// alone. Never from in-band MAVLink fields (spec §3, §9).
type PeerIdentity string

const (
	PeerTrustedGCS PeerIdentity = "trusted-gcs"
	PeerUntrusted  PeerIdentity = "untrusted"
)

// PeerAddr is a lightweight copy of the fields of a net.UDPAddr that the
// classifier and parser need, decoupled from net so domain stays
// dependency-free.
type PeerAddr struct {
	IP   net.IP
	Port int
}

func (a PeerAddr) String() string {
	return (&net.UDPAddr{IP: a.IP, Port: a.Port}).String()
}
