package services

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// Metrics groups the counters of the outcome engine in one registry so the
// API can expose them as JSON.
type Metrics struct {
	Registry gometrics.Registry

	RoundsCommitted   gometrics.Counter
	RoundsRevealed    gometrics.Counter
	RoundsAbandoned   gometrics.Counter
	IntegrityFailures gometrics.Counter
	BetsPlaced        gometrics.Meter
	BetsRejected      gometrics.Counter
	BetsResolved      gometrics.Counter
	Refunds           gometrics.Counter
	RewardsClaimed    gometrics.Counter
	PlayersFlagged    gometrics.Counter
	ActionsRejected   gometrics.Counter
	EventsDropped     gometrics.Counter
	PlayLatency       gometrics.Timer
}

func NewMetrics() *Metrics {
	r := gometrics.NewRegistry()
	return &Metrics{
		Registry:          r,
		RoundsCommitted:   gometrics.NewRegisteredCounter("fairness.rounds.committed", r),
		RoundsRevealed:    gometrics.NewRegisteredCounter("fairness.rounds.revealed", r),
		RoundsAbandoned:   gometrics.NewRegisteredCounter("fairness.rounds.abandoned", r),
		IntegrityFailures: gometrics.NewRegisteredCounter("fairness.integrity.failures", r),
		BetsPlaced:        gometrics.NewRegisteredMeter("ledger.bets.placed", r),
		BetsRejected:      gometrics.NewRegisteredCounter("ledger.bets.rejected", r),
		BetsResolved:      gometrics.NewRegisteredCounter("ledger.bets.resolved", r),
		Refunds:           gometrics.NewRegisteredCounter("ledger.refunds", r),
		RewardsClaimed:    gometrics.NewRegisteredCounter("ledger.rewards.claimed", r),
		PlayersFlagged:    gometrics.NewRegisteredCounter("anticheat.players.flagged", r),
		ActionsRejected:   gometrics.NewRegisteredCounter("anticheat.actions.rejected", r),
		EventsDropped:     gometrics.NewRegisteredCounter("events.dropped", r),
		PlayLatency:       gometrics.NewRegisteredTimer("engine.play.latency", r),
	}
}
