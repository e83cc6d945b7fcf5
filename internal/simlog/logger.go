// Package simlog provides the structured logging vocabulary used across
// the simulation core: a family of small named helper functions for the
// domain events this simulator produces, mirroring the teacher's
// pkg/logging/logger.go's LogSchedulingDecision/LogEvictionDecision/...
// family rather than ad hoc logger.Info(...) calls scattered through
// business logic. Logger construction and the logr/run-id bridge live in
// internal/logging instead, since this package's callers are always
// already holding a *zap.Logger handed down from their constructor, not a
// context.Context to recover one from — nothing in the event-driven core
// blocks on I/O, so there is no handler boundary that needs one.
package simlog

import (
	"go.uber.org/zap"
)

// LogSchedulingDecision records a successful placement.
func LogSchedulingDecision(l *zap.Logger, podID, nodeID int64, score int64, attempt int) {
	l.Info("pod scheduled",
		zap.Int64("pod_id", podID),
		zap.Int64("node_id", nodeID),
		zap.Int64("score", score),
		zap.Int("attempt", attempt),
	)
}

// LogSchedulingFailure records a pod that failed to place this cycle.
func LogSchedulingFailure(l *zap.Logger, podID int64, starvation bool, attempt int) {
	l.Debug("pod not scheduled",
		zap.Int64("pod_id", podID),
		zap.Bool("starvation", starvation),
		zap.Int("attempt", attempt),
	)
}

// LogPreemption records a victim chosen to admit an arriving pod.
func LogPreemption(l *zap.Logger, victimID, arrivingID, nodeID int64) {
	l.Info("pod preempted",
		zap.Int64("victim_pod_id", victimID),
		zap.Int64("arriving_pod_id", arrivingID),
		zap.Int64("node_id", nodeID),
	)
}

// LogEvictionDecision records the agent evicting a pod under pressure.
func LogEvictionDecision(l *zap.Logger, podID, nodeID int64, primary bool) {
	l.Info("pod evicted",
		zap.Int64("pod_id", podID),
		zap.Int64("node_id", nodeID),
		zap.Bool("primary_order", primary),
	)
}

// LogPodPhaseTransition records any phase change the agent or scheduler
// applies to a pod.
func LogPodPhaseTransition(l *zap.Logger, podID int64, from, to string) {
	l.Debug("pod phase transition",
		zap.Int64("pod_id", podID),
		zap.String("from", from),
		zap.String("to", to),
	)
}

// LogScaleDecision records a CA/HPA/VPA scaling action.
func LogScaleDecision(l *zap.Logger, controller, action string, target string, reason string) {
	l.Info("scale decision",
		zap.String("controller", controller),
		zap.String("action", action),
		zap.String("target", target),
		zap.String("reason", reason),
	)
}

// LogNodeLifecycle records a node entering or leaving the live fleet.
func LogNodeLifecycle(l *zap.Logger, nodeID int64, event string) {
	l.Info("node lifecycle",
		zap.Int64("node_id", nodeID),
		zap.String("event", event),
	)
}

// LogProtocolViolation records the diagnostic attached to a protocol
// invariant panic before it propagates, so the abort leaves a structured
// trail behind it.
func LogProtocolViolation(l *zap.Logger, component string, detail string) {
	l.Error("protocol invariant violated",
		zap.String("component", component),
		zap.String("detail", detail),
	)
}

// LogTransientCondition records a locally-absorbed transient condition
// (bounced event, dropped update for an unknown pod) at Warn rather than
// escalating it.
func LogTransientCondition(l *zap.Logger, component string, detail string) {
	l.Warn("transient condition absorbed",
		zap.String("component", component),
		zap.String("detail", detail),
	)
}
