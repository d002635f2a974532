package cascade

import (
	"math"

	"github.com/stratumgrid/resilience-core/pkg/models"
	"github.com/stratumgrid/resilience-core/pkg/utils"
)

// MultiplierTable configures how each event kind amplifies propagation
// hazard depending on the failed upstream node's kind, per spec §4.C.1
// ("hurricanes amplify outdoor dependencies; cyberattacks amplify
// telecom"). Values are bounded to [0.5, 3.0] by EventMultiplier.
type MultiplierTable map[models.EventKind]map[models.NodeKind]float64

// DefaultMultiplierTable is the built-in event/kind amplification
// table. Node kinds not listed for an event kind default to 1.0
// (no amplification), and unrecognized event kinds default to 1.0
// across the board.
func DefaultMultiplierTable() MultiplierTable {
	return MultiplierTable{
		models.EventKindHurricane: {
			models.NodeKindPower:     1.8,
			models.NodeKindTransport: 2.0,
			models.NodeKindTelecom:   1.5,
		},
		models.EventKindEarthquake: {
			models.NodeKindTransport: 2.2,
			models.NodeKindWater:     1.7,
			models.NodeKindPower:     1.6,
		},
		models.EventKindFlood: {
			models.NodeKindWater:     1.3,
			models.NodeKindTransport: 2.0,
			models.NodeKindPower:     1.5,
		},
		models.EventKindCyberattack: {
			models.NodeKindTelecom:    3.0,
			models.NodeKindEmergency:  1.5,
			models.NodeKindHealthcare: 1.4,
		},
		models.EventKindPowerOutage: {
			models.NodeKindPower:      2.5,
			models.NodeKindHealthcare: 1.6,
			models.NodeKindTelecom:    1.4,
		},
	}
}

// EventMultiplier returns the amplification factor for a failed
// upstream node of kind upstreamKind, under the given event, scaled by
// event severity, further modulated by the event's optional
// environment ranges, and bounded to [0.5, 3.0].
func (t MultiplierTable) EventMultiplier(event models.Event, upstreamKind models.NodeKind) float64 {
	base := 1.0
	if perKind, ok := t[event.Kind]; ok {
		if v, ok := perKind[upstreamKind]; ok {
			base = v
		}
	}
	// Severity 0 collapses to no amplification (multiplier 1.0);
	// severity 1 applies the full table value.
	scaled := 1.0 + (base-1.0)*event.Severity
	scaled *= environmentMultiplier(event.Environment, upstreamKind)
	return utils.ClampFloat64(scaled, 0.5, 3.0)
}

// environmentMultiplier scales EventMultiplier's result by the
// event's optional environment ranges, per spec's "environment ...
// modulate[s] propagation": wind stresses exposed power/transport/
// telecom infrastructure, precipitation stresses water and transport
// infrastructure, and extreme temperature stresses power and
// healthcare load (cooling/heating demand). A nil Environment, or a
// nil field within it, contributes no modulation for that dimension.
func environmentMultiplier(env *models.Environment, upstreamKind models.NodeKind) float64 {
	if env == nil {
		return 1.0
	}
	factor := 1.0
	if env.WindSpeed != nil && isOutdoorKind(upstreamKind) {
		factor *= 1.0 + utils.ClampUnit(*env.WindSpeed/100.0)*0.5
	}
	if env.Precipitation != nil && isFloodProneKind(upstreamKind) {
		factor *= 1.0 + utils.ClampUnit(*env.Precipitation/100.0)*0.5
	}
	if env.Temperature != nil && isTemperatureSensitiveKind(upstreamKind) {
		extremity := utils.ClampUnit(math.Abs(*env.Temperature-20.0) / 50.0)
		factor *= 1.0 + extremity*0.3
	}
	return factor
}

func isOutdoorKind(kind models.NodeKind) bool {
	switch kind {
	case models.NodeKindPower, models.NodeKindTransport, models.NodeKindTelecom:
		return true
	default:
		return false
	}
}

func isFloodProneKind(kind models.NodeKind) bool {
	switch kind {
	case models.NodeKindWater, models.NodeKindTransport:
		return true
	default:
		return false
	}
}

func isTemperatureSensitiveKind(kind models.NodeKind) bool {
	switch kind {
	case models.NodeKindPower, models.NodeKindHealthcare:
		return true
	default:
		return false
	}
}
