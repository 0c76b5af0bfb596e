// Package app is the Application facade: it owns every gateway
// component's lifecycle and the single ingress/egress loop (spec §5),
// generalized from the teacher's Application{NetworkService, WebServer,
// AuditService, ...} facade shape (internal/app/app.go in
// lcalzada-xor-wmap) onto the AEGIS pipeline.
package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/aegis-gateway/aegis/internal/adapters/capture"
	"github.com/aegis-gateway/aegis/internal/adapters/storage"
	"github.com/aegis-gateway/aegis/internal/adapters/web"
	"github.com/aegis-gateway/aegis/internal/config"
	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/services/audit"
	"github.com/aegis-gateway/aegis/internal/core/services/authz"
	"github.com/aegis-gateway/aegis/internal/core/services/classify"
	aegiscrypto "github.com/aegis-gateway/aegis/internal/core/services/crypto"
	"github.com/aegis-gateway/aegis/internal/core/services/decision"
	"github.com/aegis-gateway/aegis/internal/core/services/detect"
	"github.com/aegis-gateway/aegis/internal/core/services/features"
	"github.com/aegis-gateway/aegis/internal/core/services/intent"
	"github.com/aegis-gateway/aegis/internal/core/services/mavlink"
	"github.com/aegis-gateway/aegis/internal/core/services/mlintent"
	"github.com/aegis-gateway/aegis/internal/core/services/replay"
	"github.com/aegis-gateway/aegis/internal/core/services/shadow"
	"github.com/aegis-gateway/aegis/internal/telemetry"
	"github.com/google/uuid"
)

const (
	maxDatagramSize = 1500
	mlInferenceBudget = 20 * time.Millisecond
)

// Application owns every gateway component and the ingress/egress loop.
type Application struct {
	cfg       *config.Config
	sessionID string

	classifier *classify.Classifier
	parser     *mavlink.Parser
	gate       *authz.Gate
	replayMgr  *replay.Manager
	seqTracker *replay.SequenceTracker
	keyManager *aegiscrypto.KeyManager

	flood     *detect.FloodDetector
	injection *detect.InjectionDetector
	intentFW  *intent.Firewall
	featuresX *features.Extractor
	mlEngine  *mlintent.Engine
	shadowEx  *shadow.Executor
	decider   *decision.Engine

	auditLog *audit.Logger
	pcap     *capture.Writer
	store    *storage.SQLiteAdapter
	webSrv   *web.Server

	vehicleMu sync.RWMutex
	vehicle   domain.VehicleState

	gcsMu   sync.Mutex
	lastGCS *net.UDPAddr

	seqMu sync.Mutex
	seq   uint64

	egressConn *net.UDPConn
	fcAddr     *net.UDPAddr
}

// New constructs the Application and every owned component, but does not
// bind sockets or start the ingress loop (see Run).
func New(cfg *config.Config) (*Application, error) {
	a := &Application{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		// Battery reads full until the first SYS_STATUS telemetry arrives;
		// a zero default would put the shadow executor's energy margin at
		// critical on every startup.
		vehicle: domain.VehicleState{Battery: 1.0, MissionPhase: domain.PhaseIdle},
	}

	a.classifier = classify.New(net.ParseIP(cfg.TrustedGCSIP), cfg.Strict)
	a.parser = mavlink.NewParser()
	a.gate = authz.New()
	a.replayMgr = replay.New(cfg.ReplayNonceWindow, cfg.ReplayTimestampToleranceSec)
	a.seqTracker = replay.NewSequenceTracker()

	if cfg.EnableCrypto {
		km, err := aegiscrypto.NewKeyManager(aegiscrypto.KeyManagerConfig{
			RootKeyPath:     cfg.RootKeyPath,
			SessionKeyPath:  cfg.SessionKeyPath,
			MetadataPath:    cfg.MetadataPath,
			SessionLifetime: time.Duration(cfg.SessionLifetimeSec) * time.Second,
			MaxCommandsPer:  cfg.MaxCommandsPerSession,
			GracePeriod:     time.Duration(cfg.GracePeriodSec) * time.Second,
			Strict:          cfg.Strict,
		})
		if err != nil {
			return nil, err
		}
		a.keyManager = km
	}

	a.flood = detect.NewFloodDetectorWithThresholds(cfg.FloodNormalThreshold, cfg.FloodAttackThreshold, cfg.FloodBurstThreshold)
	a.injection = detect.NewInjectionDetector()
	a.intentFW = intent.New()
	a.featuresX = features.New(0)
	if cfg.EnableML {
		a.mlEngine = mlintent.New()
	}
	if cfg.EnableShadow {
		a.shadowEx = shadow.New(
			domain.GeofenceConfig{
				CenterLat: cfg.GeofenceCenterLat,
				CenterLon: cfg.GeofenceCenterLon,
				RadiusM:   cfg.GeofenceRadiusM,
				MinAltM:   cfg.GeofenceMinAltM,
				MaxAltM:   cfg.GeofenceMaxAltM,
			},
			domain.KinematicLimits{MaxHorizontalVelo: 25, MaxVerticalVelo: 10, MaxAccel: 10},
		)
	}
	a.decider = decision.New(decision.DefaultWeights)

	auditLog, err := audit.NewLogger(audit.Config{
		LogDir:    cfg.LogDir,
		SessionID: a.sessionID,
	})
	if err != nil {
		return nil, err
	}
	a.auditLog = auditLog

	if cfg.EnableStorage {
		store, err := storage.NewSQLiteAdapter(cfg.SQLitePath)
		if err != nil {
			slog.Warn("audit index sink disabled", "error", err)
		} else {
			a.auditLog.AddSink(store)
			a.store = store
		}
	}

	if cfg.EnableCapture {
		pcap, err := capture.NewWriter(cfg.CapturePath)
		if err != nil {
			slog.Warn("capture sink disabled", "error", err)
		} else {
			a.pcap = pcap
		}
	}

	a.webSrv = web.NewServer(cfg.HTTPAddr, a)

	return a, nil
}

// Run binds the ingress/egress sockets and processes datagrams until ctx
// is cancelled (spec §5's single-ingress-loop model with graceful
// shutdown on cancellation).
func (a *Application) Run(ctx context.Context) error {
	listenAddr := &net.UDPAddr{IP: net.ParseIP(a.cfg.ListenHost), Port: a.cfg.ListenPort}
	conn, err := net.ListenUDP("udp", listenAddr)
	if err != nil {
		return &domain.BindError{Addr: listenAddr.String(), Err: err}
	}
	defer conn.Close()

	if a.cfg.FCIP != "" {
		a.fcAddr = &net.UDPAddr{IP: net.ParseIP(a.cfg.FCIP), Port: a.cfg.FCPort}
		egress, err := net.DialUDP("udp", nil, a.fcAddr)
		if err != nil {
			return &domain.BindError{Addr: a.fcAddr.String(), Err: err}
		}
		a.egressConn = egress
		defer egress.Close()
	}

	telemetry.InitMetrics()
	shutdownTracer, err := telemetry.InitTracer("1.0.0")
	if err == nil {
		defer shutdownTracer(context.Background())
	}

	go func() {
		if err := a.webSrv.ListenAndServe(); err != nil {
			slog.Warn("operator http surface stopped", "error", err)
		}
	}()

	if a.egressConn != nil {
		go a.returnLoop(ctx, conn)
	}

	slog.Info("aegis gateway started", "listen", listenAddr.String(), "session", a.sessionID)

	buf := make([]byte, maxDatagramSize)
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))

	for {
		select {
		case <-ctx.Done():
			return a.shutdown()
		default:
		}

		n, srcAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
				continue
			}
			slog.Warn("ingress read error", "error", err)
			continue
		}
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))

		raw := append([]byte(nil), buf[:n]...)
		peer := domain.PeerAddr{IP: srcAddr.IP, Port: srcAddr.Port}

		if a.pcap != nil {
			a.pcap.Write(raw, true)
		}

		a.handleDatagram(ctx, peer, raw)
	}
}

func (a *Application) shutdown() error {
	slog.Info("aegis gateway shutting down", "session", a.sessionID)
	if a.keyManager != nil {
		a.keyManager.Close()
	}
	if err := a.auditLog.Flush(context.Background()); err != nil {
		slog.Warn("audit flush failed", "error", err)
	}
	a.auditLog.Close()
	if a.pcap != nil {
		a.pcap.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	return nil
}

// handleDatagram dispatches one datagram's frames through the full
// pipeline: classify -> parse -> authz -> detectors -> decision -> audit
// -> egress (spec §5).
func (a *Application) handleDatagram(ctx context.Context, peer domain.PeerAddr, raw []byte) {
	identity := a.classifier.Classify(peer)
	telemetry.DatagramsIngress.WithLabelValues(string(identity)).Inc()

	if identity == domain.PeerTrustedGCS {
		a.gcsMu.Lock()
		a.lastGCS = &net.UDPAddr{IP: peer.IP, Port: peer.Port}
		a.gcsMu.Unlock()
	}

	plaintext := raw
	cryptoValid := true
	var envelopeNonce [12]byte
	haveEnvelopeNonce := false
	if a.keyManager != nil && len(raw) > 12 {
		copy(envelopeNonce[:], raw[:12])
		haveEnvelopeNonce = true
		env := a.keyManager.CurrentEnvelope()
		pt, err := env.Decrypt(envelopeNonce, raw[12:])
		if err != nil {
			if grace := a.keyManager.GraceEnvelope(); grace != nil {
				pt, err = grace.Decrypt(envelopeNonce, raw[12:])
			}
		}
		if err != nil {
			cryptoValid = false
		} else {
			plaintext = pt
		}
	}

	if a.keyManager != nil && a.keyManager.Context().Meta.State == domain.KeyRevoked {
		a.handleEmergencyMode(ctx, peer, identity, plaintext, cryptoValid)
		return
	}

	if a.keyManager != nil && cryptoValid && haveEnvelopeNonce {
		if err := a.keyManager.NoteCommand(ctx); err != nil {
			slog.Warn("session key rotation failed", "error", err)
		}
	}

	cmds, perr := a.parser.Parse(peer, plaintext, time.Now().UnixNano())
	if perr != nil {
		telemetry.DatagramsDropped.WithLabelValues("parse", "parse-error").Inc()
		a.recordParseError(ctx, perr)
	}

	for i, cmd := range cmds {
		nonce := envelopeNonce
		if !haveEnvelopeNonce || i > 0 {
			// One envelope nonce covers one datagram; additional frames
			// inside it (and all frames when crypto is off) key the
			// replay window on the per-peer extended sequence counter.
			nonce = a.seqTracker.Extend(peer.String(), cmd.SeqNum)
		}
		a.processCommand(ctx, peer, identity, cmd, cryptoValid, nonce)
	}
}

func (a *Application) recordParseError(ctx context.Context, perr error) {
	rec := domain.NewAuditRecord(a.sessionID, a.nextSeq(), time.Now())
	rec.Kind = domain.KindUnknown
	rec.CommandSummary = "malformed frame"
	rec.CryptoValid = true
	rec.Decision = domain.Decision{State: domain.StateDrop, Severity: domain.SeverityLow}
	rec.Rationale = "parse-error: " + perr.Error()
	a.auditLog.Log(ctx, rec)
}

// handleEmergencyMode implements spec §4.5/§7's key-revocation failsafe:
// only return-to-launch, land and disarm commands are admitted until an
// operator manually resets the key manager; everything else (takeoff and
// arm included) is rejected with crypto-revoked and audited.
func (a *Application) handleEmergencyMode(ctx context.Context, peer domain.PeerAddr, identity domain.PeerIdentity, plaintext []byte, cryptoValid bool) {
	cmds, _ := a.parser.Parse(peer, plaintext, time.Now().UnixNano())
	for _, cmd := range cmds {
		admit := cmd.Kind == domain.KindEmergency
		switch cmd.Kind {
		case domain.KindTakeoffLand:
			id, _ := cmd.ParamFloat("command")
			admit = uint16(id) == 21 // MAV_CMD_NAV_LAND
		case domain.KindArmDisarm:
			arm, ok := cmd.ParamFloat("param1")
			admit = ok && arm == 0 // disarm only
		}
		if admit {
			a.processCommand(ctx, peer, identity, cmd, cryptoValid, a.seqTracker.Extend(peer.String(), cmd.SeqNum))
			continue
		}
		telemetry.DatagramsDropped.WithLabelValues("crypto", "revoked").Inc()
		rec := domain.NewAuditRecord(a.sessionID, a.nextSeq(), time.Now())
		rec.Kind = cmd.Kind
		rec.CommandSummary = string(cmd.MessageType)
		rec.CryptoValid = false
		rec.Decision = domain.Decision{State: domain.StateDrop, Severity: domain.SeverityCritical}
		rec.Rationale = "crypto-revoked: rejected outside emergency failsafe kinds"
		a.auditLog.Log(ctx, rec)
	}
}

func (a *Application) processCommand(ctx context.Context, peer domain.PeerAddr, identity domain.PeerIdentity, cmd domain.ParsedCommand, cryptoValid bool, nonce [12]byte) {
	start := time.Now()

	admitted, securityEvent := a.gate.Admit(identity, cmd.MessageType)
	if !admitted {
		telemetry.DatagramsDropped.WithLabelValues("authz", "not-admitted").Inc()
		if securityEvent {
			a.recordSecurityEvent(ctx, cmd, cryptoValid)
		}
		return
	}

	state := a.currentVehicleState()

	floodVerdict := a.flood.Observe(time.Now())
	if floodVerdict.IsFlood {
		telemetry.DetectorTriggers.WithLabelValues("flood").Inc()
	}

	hash := sha256.Sum256([]byte(fmt.Sprintf("%v", cmd.Params)))
	replayMetrics := a.replayMgr.Check(nonce, cmd.IngressTimeNS, hash)
	if replayMetrics.Verdict == domain.ReplayHit {
		telemetry.DetectorTriggers.WithLabelValues("replay").Inc()
	}

	a.intentFW.UpdateState(state)
	intentResult := a.intentFW.Analyze(cmd)
	if intentResult.Mismatch {
		telemetry.DetectorTriggers.WithLabelValues("intent").Inc()
	}

	mlRisk := 0.5
	mlAvailable := false
	var mlResult domain.MLIntentResult
	if a.mlEngine != nil {
		if vec, ok := a.featuresX.Observe(cmd, state); ok {
			mlCtx, cancel := context.WithTimeout(ctx, mlInferenceBudget)
			mlResult = a.mlEngine.Predict(mlCtx, vec)
			cancel()
			if mlResult.ModelStatus == "ok" {
				mlAvailable = true
				mlRisk = mlResult.RiskScore
			}
		}
	}

	a.injection.UpdateState(state, a.keyManager != nil && a.keyManager.Context().Meta.State == domain.KeyRevoked)
	injMetrics := a.injection.Check(cmd, identity == domain.PeerTrustedGCS, mlRisk)
	if injMetrics.IsInjection {
		telemetry.DetectorTriggers.WithLabelValues("injection").Inc()
	}

	var shadowResult domain.ShadowResult
	if a.shadowEx != nil {
		shadowResult = a.shadowEx.Predict(state, cmd)
	}

	inputs := domain.RiskInputs{
		CryptoInvalid:     boolRisk(!cryptoValid),
		IntentMismatch:    boolRisk(intentResult.Mismatch),
		BehaviorAnomaly:   behaviorRisk(floodVerdict, injMetrics, replayMetrics),
		TrajectoryRisk:    shadowResult.TrajectoryRisk,
		MLIntentRisk:      mlRisk,
		GeofenceViolation: hasGeofenceViolation(shadowResult),
		BehaviorAnomalyHigh: (floodVerdict.IsFlood && floodVerdict.Confidence >= 0.9) ||
			(injMetrics.IsInjection && injMetrics.Confidence >= 0.85) ||
			(replayMetrics.Verdict == domain.ReplayHit && replayMetrics.Confidence >= 0.85),
		MLHighConfidenceHigh: mlAvailable && mlResult.Confidence >= 0.8 && mlResult.RiskScore >= 0.75,
		CryptoConfidence:     1.0,
		IntentConfidence:     intentResult.Confidence,
		BehaviorConfidence:   floodVerdict.Confidence,
		TrajectoryConfidence: 1.0,
		MLConfidence:         mlResult.Confidence,
	}

	d := a.decider.Decide(inputs)
	telemetry.DecisionsTotal.WithLabelValues(string(d.State), string(d.Severity)).Inc()
	telemetry.PipelineLatency.WithLabelValues().Observe(time.Since(start).Seconds())

	if a.keyManager != nil && (d.Severity == domain.SeverityHigh || d.Severity == domain.SeverityCritical) {
		if err := a.keyManager.NoteRiskEscalation(ctx, "high"); err != nil {
			slog.Warn("key rotation on risk escalation failed", "error", err)
		}
	}

	if d.State == domain.StateAccept || d.State == domain.StateConstrain {
		a.updateVehicleState(cmd, state)
	}
	a.dispatchEgress(cmd, d)
	a.recordAudit(ctx, cmd, replayMetrics, floodVerdict, injMetrics, intentResult, mlResult, shadowResult, cryptoValid, d)
}

func (a *Application) recordSecurityEvent(ctx context.Context, cmd domain.ParsedCommand, cryptoValid bool) {
	rec := domain.NewAuditRecord(a.sessionID, a.nextSeq(), time.Now())
	rec.Kind = cmd.Kind
	rec.CommandSummary = "blocked by authorization gate"
	rec.CryptoValid = cryptoValid
	rec.Decision = domain.Decision{State: domain.StateDrop, Severity: domain.SeverityMedium}
	rec.Rationale = "security-untrusted: sender attempted a privileged command kind"
	a.auditLog.Log(ctx, rec)
}

func (a *Application) recordAudit(ctx context.Context, cmd domain.ParsedCommand, replayMetrics domain.ReplayMetrics,
	floodVerdict domain.FloodVerdict, injMetrics domain.InjectionMetrics, intentResult domain.IntentFirewallResult,
	mlResult domain.MLIntentResult, shadowResult domain.ShadowResult, cryptoValid bool, d domain.Decision) {

	rec := domain.NewAuditRecord(a.sessionID, a.nextSeq(), time.Now())
	rec.Kind = cmd.Kind
	rec.CommandSummary = string(cmd.MessageType)
	rec.CryptoValid = cryptoValid
	rec.ReplayVerdict = replayMetrics.Verdict
	rec.FloodVerdict = floodVerdict.IsFlood
	rec.InjectionScore = injMetrics.RiskScore
	rec.IntentMismatch = intentResult.Mismatch
	rec.MLIntent = mlResult.Intent
	rec.MLRisk = mlResult.RiskScore
	rec.GeofenceViolation = hasGeofenceViolation(shadowResult)
	rec.Decision = d
	rec.Rationale = d.Rationale

	if err := a.auditLog.Log(ctx, rec); err != nil {
		slog.Warn("audit write degraded", "error", err)
	}
	if a.webSrv != nil {
		a.webSrv.Broadcast(d)
	}
}

func (a *Application) dispatchEgress(cmd domain.ParsedCommand, d domain.Decision) {
	if a.egressConn == nil {
		return
	}
	switch d.State {
	case domain.StateHold:
		telemetry.DatagramsDropped.WithLabelValues("decision", "held").Inc()
		return
	case domain.StateRTL:
		rtl := mavlink.NewRTLCommand(cmd.SourceSystemID, cmd.SourceComponentID, cmd.SeqNum, time.Now().UnixNano())
		frame, err := a.parser.Encode(rtl)
		if err != nil {
			slog.Warn("rtl encode failed", "error", err)
			return
		}
		a.writeEgress(frame)
		return
	case domain.StateConstrain:
		// Clamp numeric parameters to the injection detector's bounds
		// table before re-synthesizing, so a constrained command-long
		// frame actually differs from the original; other message types
		// have no per-field encoder, so they relay the captured bytes
		// unchanged (the sanitization already happened at the decision
		// layer by not selecting `accept`).
		clamped := clampParams(cmd)
		if clamped.MessageType == domain.MsgCommandLong {
			if frame, err := a.parser.Encode(clamped); err == nil {
				a.writeEgress(frame)
				return
			}
		}
		a.writeRawFrame(cmd)
		return
	default: // accept: forward the exact bytes that were received (spec §3's invariant).
		a.writeRawFrame(cmd)
	}
}

// clampParams bounds out-of-range numeric parameters to the Injection
// Detector's interval table (spec §4.7) before a constrained command is
// re-synthesized onto the wire.
func clampParams(cmd domain.ParsedCommand) domain.ParsedCommand {
	bounds := map[string][2]float64{
		"param1": {0, 150}, "param2": {0, 25}, "param5": {-90, 90}, "param6": {-180, 180},
		"param7": {0, 150}, "altitude": {0, 150}, "velocity": {0, 25},
	}
	out := cmd
	out.Params = make(map[string]domain.ParamValue, len(cmd.Params))
	for k, v := range cmd.Params {
		if b, ok := bounds[k]; ok && !v.IsText {
			if v.Number < b[0] {
				v = domain.NumParam(b[0])
			} else if v.Number > b[1] {
				v = domain.NumParam(b[1])
			}
		}
		out.Params[k] = v
	}
	return out
}

// writeRawFrame relays the exact bytes the frame parser decoded this
// command from. This is the default egress path: AEGIS does not
// re-synthesize MAVLink traffic it isn't actively sanitizing.
func (a *Application) writeRawFrame(cmd domain.ParsedCommand) {
	if len(cmd.RawFrame) == 0 {
		telemetry.DatagramsDropped.WithLabelValues("egress", "no-raw-frame").Inc()
		return
	}
	a.writeEgress(cmd.RawFrame)
}

func (a *Application) writeEgress(frame []byte) {
	_, err := a.egressConn.Write(frame)
	if err != nil {
		// Retry once, then log and drop; an egress fault never crashes
		// the process.
		if _, err = a.egressConn.Write(frame); err != nil {
			slog.Warn("egress write failed", "error", &domain.IOError{Op: "write", Err: err})
			telemetry.DatagramsDropped.WithLabelValues("egress", "io-error").Inc()
			return
		}
	}
	telemetry.DatagramsEgress.WithLabelValues().Inc()
	if a.pcap != nil {
		a.pcap.Write(frame, false)
	}
}

func (a *Application) currentVehicleState() domain.VehicleState {
	a.vehicleMu.RLock()
	defer a.vehicleMu.RUnlock()
	return a.vehicle
}

// returnLoop relays the flight controller's reply traffic back to the
// trusted GCS and folds the telemetry it carries into VehicleState
// (spec §3: state is "updated from telemetry frames seen on the return
// path"). Return traffic is not subject to the command pipeline — the
// protected direction is operator-to-FC.
func (a *Application) returnLoop(ctx context.Context, ingress *net.UDPConn) {
	buf := make([]byte, maxDatagramSize)
	fcPeer := domain.PeerAddr{IP: a.fcAddr.IP, Port: a.fcAddr.Port}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		a.egressConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := a.egressConn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			slog.Warn("return-path read error", "error", err)
			continue
		}
		raw := append([]byte(nil), buf[:n]...)

		cmds, _ := a.parser.Parse(fcPeer, raw, time.Now().UnixNano())
		for _, c := range cmds {
			a.foldTelemetry(c)
		}

		a.gcsMu.Lock()
		gcs := a.lastGCS
		a.gcsMu.Unlock()
		if gcs != nil {
			if _, err := ingress.WriteToUDP(raw, gcs); err != nil {
				slog.Warn("return-path relay failed", "error", &domain.IOError{Op: "relay", Err: err})
			}
		}
	}
}

// flightModeFromCustom maps ArduPilot copter custom-mode numbers onto the
// gateway's FlightMode set.
func flightModeFromCustom(mode uint32) domain.FlightMode {
	switch mode {
	case 0:
		return domain.FlightModeStabilize
	case 3:
		return domain.FlightModeAuto
	case 4:
		return domain.FlightModeGuided
	case 5:
		return domain.FlightModeLoiter
	case 6:
		return domain.FlightModeRTL
	case 9:
		return domain.FlightModeLand
	default:
		return domain.FlightModeUnknown
	}
}

// foldTelemetry updates VehicleState from one return-path telemetry
// frame. Single writer: only the gateway mutates vehicle state.
func (a *Application) foldTelemetry(cmd domain.ParsedCommand) {
	a.vehicleMu.Lock()
	defer a.vehicleMu.Unlock()
	next := a.vehicle

	switch cmd.MessageType {
	case domain.MsgHeartbeat:
		if v, ok := cmd.ParamFloat("custom_mode"); ok {
			next.FlightMode = flightModeFromCustom(uint32(v))
		}
		if v, ok := cmd.ParamFloat("base_mode"); ok {
			next.Armed = uint8(v)&0x80 != 0 // MAV_MODE_FLAG_SAFETY_ARMED
		}
	case domain.MsgSysStatus:
		if v, ok := cmd.ParamFloat("battery"); ok {
			next.Battery = v
		}
	case domain.MsgGPSRawInt:
		if v, ok := cmd.ParamFloat("latitude"); ok {
			next.Latitude = v
		}
		if v, ok := cmd.ParamFloat("longitude"); ok {
			next.Longitude = v
		}
		if v, ok := cmd.ParamFloat("altitude"); ok {
			next.AltitudeAGL = v
		}
	}

	next.MissionActive = next.FlightMode == domain.FlightModeAuto
	next.MissionPhase = derivePhase(next)
	a.vehicle = next
}

// derivePhase maps the observed vehicle state onto the coarse mission
// phase the intent firewall keys its expected-intent table on.
func derivePhase(v domain.VehicleState) domain.MissionPhase {
	switch {
	case v.FlightMode == domain.FlightModeRTL:
		return domain.PhaseReturn
	case v.FlightMode == domain.FlightModeLand:
		return domain.PhaseLanding
	case !v.Armed:
		return domain.PhaseIdle
	case v.AltitudeAGL < 2:
		return domain.PhasePreFlight
	case v.AltitudeAGL < 10 && v.VerticalVelo > 0.5:
		return domain.PhaseTakeoff
	case v.MissionActive:
		return domain.PhaseMission
	default:
		return domain.PhaseCruise
	}
}

// updateVehicleState folds an accepted command's target parameters into
// the gateway's single-writer VehicleState view, so detectors reason
// against the state the vehicle is being steered toward between
// telemetry updates.
func (a *Application) updateVehicleState(cmd domain.ParsedCommand, prev domain.VehicleState) {
	next := prev
	if alt, ok := cmd.ParamFloat("altitude"); ok {
		next.AltitudeAGL = alt
	}
	if vz, ok := cmd.ParamFloat("vz"); ok {
		next.VerticalVelo = vz
	}
	if lat, ok := cmd.ParamFloat("latitude"); ok {
		next.Latitude = lat
	}
	if lon, ok := cmd.ParamFloat("longitude"); ok {
		next.Longitude = lon
	}
	if cmd.Kind == domain.KindArmDisarm {
		if armVal, ok := cmd.ParamFloat("arm"); ok {
			next.Armed = armVal != 0
		}
	}
	next.MissionPhase = derivePhase(next)
	a.vehicleMu.Lock()
	a.vehicle = next
	a.vehicleMu.Unlock()
}

func (a *Application) nextSeq() uint64 {
	a.seqMu.Lock()
	defer a.seqMu.Unlock()
	a.seq++
	return a.seq
}

func boolRisk(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func behaviorRisk(flood domain.FloodVerdict, inj domain.InjectionMetrics, replay domain.ReplayMetrics) float64 {
	risk := flood.Confidence * boolRisk(flood.IsFlood)
	if inj.RiskScore > risk {
		risk = inj.RiskScore
	}
	if replay.Verdict == domain.ReplayHit && replay.Confidence > risk {
		risk = replay.Confidence
	}
	return risk
}

func hasGeofenceViolation(s domain.ShadowResult) bool {
	for _, o := range s.Outcomes {
		if o.GeofenceViolation {
			return true
		}
	}
	return false
}

// SessionID exposes the running session identifier for the HTTP/websocket
// surface.
func (a *Application) SessionID() string { return a.sessionID }

// Summary exposes the running session's aggregate counts for the HTTP
// surface (the `audit summary` CLI reads the flushed file instead).
func (a *Application) Summary() domain.SessionSummary { return a.auditLog.Summary() }
