package app

import (
	"context"
	"net"
	"testing"

	"github.com/aegis-gateway/aegis/internal/config"
	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/services/mavlink"
	"github.com/stretchr/testify/require"
)

const trustedIP = "10.0.0.5"

func testApp(t *testing.T, mutate func(*config.Config)) *Application {
	t.Helper()
	cfg := config.Defaults()
	cfg.TrustedGCSIP = trustedIP
	cfg.LogDir = t.TempDir()
	cfg.EnableCrypto = false
	cfg.EnableML = false
	cfg.EnableShadow = false
	cfg.EnableStorage = false
	cfg.EnableCapture = false
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := New(&cfg)
	require.NoError(t, err)
	return a
}

func trustedPeer() domain.PeerAddr {
	return domain.PeerAddr{IP: net.ParseIP(trustedIP), Port: 49000}
}

func untrustedPeer() domain.PeerAddr {
	return domain.PeerAddr{IP: net.ParseIP("192.0.2.99"), Port: 49000}
}

// commandLongFrame encodes one COMMAND_LONG wire frame with the given
// MAV_CMD id and param map.
func commandLongFrame(t *testing.T, p *mavlink.Parser, seq uint8, cmdID float64, params map[string]float64) []byte {
	t.Helper()
	pm := map[string]domain.ParamValue{"command": domain.NumParam(cmdID)}
	for k, v := range params {
		pm[k] = domain.NumParam(v)
	}
	frame, err := p.Encode(domain.ParsedCommand{
		MessageType:    domain.MsgCommandLong,
		SourceSystemID: 255,
		SeqNum:         seq,
		Params:         pm,
	})
	require.NoError(t, err)
	return frame
}

func TestPipeline_UntrustedCommandLongBlockedAndAudited(t *testing.T) {
	a := testApp(t, nil)
	enc := mavlink.NewParser()

	// MAV_CMD_COMPONENT_ARM_DISARM from an unknown source address.
	frame := commandLongFrame(t, enc, 1, 400, map[string]float64{"param1": 1})
	a.handleDatagram(context.Background(), untrustedPeer(), frame)

	s := a.Summary()
	require.Equal(t, uint64(1), s.TotalDatagrams)
	require.Equal(t, uint64(1), s.Dropped)
	require.Equal(t, uint64(0), s.Accepted)
}

func TestPipeline_UntrustedCommandLongWithBogusCmdIDStillAudited(t *testing.T) {
	a := testApp(t, nil)
	enc := mavlink.NewParser()

	// An unrecognized MAV_CMD id classifies to the unknown kind, but the
	// frame is still a COMMAND_LONG: it must be blocked and logged, not
	// silently dropped.
	frame := commandLongFrame(t, enc, 1, 9999, nil)
	a.handleDatagram(context.Background(), untrustedPeer(), frame)

	s := a.Summary()
	require.Equal(t, uint64(1), s.TotalDatagrams)
	require.Equal(t, uint64(1), s.Dropped)
}

func TestPipeline_UntrustedHeartbeatDroppedSilently(t *testing.T) {
	a := testApp(t, nil)

	hb := domain.ParsedCommand{MessageType: domain.MsgHeartbeat, Kind: domain.KindTelemetryRequest}
	a.processCommand(context.Background(), untrustedPeer(), domain.PeerUntrusted, hb, true, [12]byte{})

	// No audit record at all: silent drop keeps heartbeat spam out of
	// the trail.
	require.Equal(t, uint64(0), a.Summary().TotalDatagrams)
}

func TestPipeline_TrustedNavigationAccepted(t *testing.T) {
	a := testApp(t, nil)
	a.vehicle = domain.VehicleState{
		Armed: true, FlightMode: domain.FlightModeAuto, MissionActive: true,
		MissionPhase: domain.PhaseMission, AltitudeAGL: 25, Battery: 0.8,
		Latitude: 47.640420, Longitude: -122.140300,
	}
	enc := mavlink.NewParser()

	// MAV_CMD_NAV_WAYPOINT toward a nearby point at sane altitude.
	frame := commandLongFrame(t, enc, 1, 16, map[string]float64{
		"param5": 47.640900, "param6": -122.140800, "param7": 30,
	})
	a.handleDatagram(context.Background(), trustedPeer(), frame)

	s := a.Summary()
	require.Equal(t, uint64(1), s.TotalDatagrams)
	require.Equal(t, uint64(1), s.Accepted)
}

func TestPipeline_ReplayedFrameHeldSecondTime(t *testing.T) {
	a := testApp(t, nil)
	a.vehicle = domain.VehicleState{
		Armed: true, FlightMode: domain.FlightModeAuto, MissionActive: true,
		MissionPhase: domain.PhaseMission, AltitudeAGL: 25, Battery: 0.8,
	}
	enc := mavlink.NewParser()

	frame := commandLongFrame(t, enc, 9, 16, map[string]float64{
		"param5": 47.6405, "param6": -122.1405, "param7": 30,
	})
	a.handleDatagram(context.Background(), trustedPeer(), frame)
	a.handleDatagram(context.Background(), trustedPeer(), frame)

	s := a.Summary()
	require.Equal(t, uint64(2), s.TotalDatagrams)
	require.Equal(t, uint64(1), s.ReplayDetections)
	require.Equal(t, uint64(1), s.Accepted)
	require.GreaterOrEqual(t, s.Held+s.RTLTriggered, uint64(1))
}

func TestPipeline_DisarmInFlightHeld(t *testing.T) {
	a := testApp(t, nil)
	a.vehicle = domain.VehicleState{
		Armed: true, FlightMode: domain.FlightModeGuided,
		MissionPhase: domain.PhaseCruise, AltitudeAGL: 50, Battery: 0.8,
	}
	enc := mavlink.NewParser()

	frame := commandLongFrame(t, enc, 1, 400, map[string]float64{"param1": 0})
	a.handleDatagram(context.Background(), trustedPeer(), frame)

	s := a.Summary()
	require.Equal(t, uint64(1), s.TotalDatagrams)
	require.GreaterOrEqual(t, s.Held+s.RTLTriggered, uint64(1))
	require.Equal(t, uint64(1), s.InjectionDetections)
}

func TestPipeline_ExtremeAltitudeHeldWithShadow(t *testing.T) {
	a := testApp(t, func(cfg *config.Config) {
		cfg.EnableShadow = true
		cfg.GeofenceCenterLat = 47.6404
		cfg.GeofenceCenterLon = -122.1403
		cfg.GeofenceRadiusM = 2000
		cfg.GeofenceMinAltM = 0
		cfg.GeofenceMaxAltM = 120
	})
	a.vehicle = domain.VehicleState{
		Armed: true, FlightMode: domain.FlightModeAuto, MissionActive: true,
		MissionPhase: domain.PhaseMission, AltitudeAGL: 25, Battery: 0.8,
		Latitude: 47.6404, Longitude: -122.1403,
	}
	enc := mavlink.NewParser()

	frame := commandLongFrame(t, enc, 1, 16, map[string]float64{
		"param5": 47.6405, "param6": -122.1404, "param7": 500,
	})
	a.handleDatagram(context.Background(), trustedPeer(), frame)

	s := a.Summary()
	require.Equal(t, uint64(1), s.TotalDatagrams)
	require.GreaterOrEqual(t, s.Held+s.RTLTriggered, uint64(1))
}

func TestPipeline_FloodMovesToHoldWithinBurst(t *testing.T) {
	a := testApp(t, nil)
	a.vehicle = domain.VehicleState{
		Armed: true, FlightMode: domain.FlightModeAuto, MissionActive: true,
		MissionPhase: domain.PhaseMission, AltitudeAGL: 25, Battery: 0.8,
	}
	enc := mavlink.NewParser()

	for i := 0; i < 60; i++ {
		frame := commandLongFrame(t, enc, uint8(i), 16, map[string]float64{
			"param5": 47.6405, "param6": -122.1405, "param7": float64(20 + i%10),
		})
		a.handleDatagram(context.Background(), trustedPeer(), frame)
	}

	s := a.Summary()
	require.Equal(t, uint64(60), s.TotalDatagrams)
	require.GreaterOrEqual(t, s.FloodDetections, uint64(1))
	require.GreaterOrEqual(t, s.Held+s.RTLTriggered, uint64(1))
}

func TestPipeline_MalformedDatagramAuditedAsParseError(t *testing.T) {
	a := testApp(t, nil)

	a.handleDatagram(context.Background(), trustedPeer(), []byte{0x00, 0x01, 0x02, 0x03})

	s := a.Summary()
	require.Equal(t, uint64(1), s.TotalDatagrams)
	require.Equal(t, uint64(1), s.Dropped)
}
