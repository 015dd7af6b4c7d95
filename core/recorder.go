package core

import (
	"context"

	"github.com/PaulFidika/memberkit/session"
	"github.com/sirupsen/logrus"
)

// LogPassRecorder writes reconciliation pass outcomes to a logger.
type LogPassRecorder struct {
	Log logrus.FieldLogger
}

func (r LogPassRecorder) RecordPass(ctx context.Context, res session.PassResult) {
	_ = ctx
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithFields(logrus.Fields{
		"actor_id":    res.ActorID,
		"pass_id":     res.PassID,
		"forced":      res.Forced,
		"duration_ms": res.Duration.Milliseconds(),
	})
	if len(res.Degraded) > 0 {
		entry = entry.WithField("degraded", res.Degraded)
	}
	switch {
	case res.Err != nil:
		entry.WithError(res.Err).Warn("pass failed")
	case res.Discarded:
		entry.Info("pass discarded")
	case res.NeedsOnboarding:
		entry.Info("pass finished: actor needs onboarding")
	default:
		entry.Debug("pass finished")
	}
}
