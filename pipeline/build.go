package pipeline

import (
	"log/slog"
	"time"

	"ecosort-gateway/classifier"
	"ecosort-gateway/middleware/auth"
	"ecosort-gateway/middleware/ratelimit/application"
	"ecosort-gateway/middleware/ratelimit/domain"
	"ecosort-gateway/validation"
)

// Deps são os colaboradores do pipeline de classificação. Limiter nil desliga
// a admissão (RATE_ENABLED=false).
type Deps struct {
	Gate       auth.Gate
	Limiter    domain.Limiter
	RetryAfter time.Duration
	Stats      domain.StatsStore
	Validator  *validation.Validator
	Scorer     *classifier.Scorer
	Metrics    ClassificationRecorder
	Logger     *slog.Logger
}

// Build monta Auth -> Admission -> Validation -> Scoring -> Record.
func Build(d Deps) *Pipeline {
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	if d.Scorer == nil {
		d.Scorer = classifier.NewScorer(classifier.WithLogger(d.Logger))
	}

	stages := []Stage{AuthStage{Gate: d.Gate, Log: d.Logger}}
	if d.Limiter != nil {
		stages = append(stages, AdmissionStage{
			Service: application.Service{Limiter: d.Limiter, RetryAfter: d.RetryAfter},
			Stats:   d.Stats,
			Log:     d.Logger,
		})
	}
	stages = append(stages,
		ValidationStage{Validator: d.Validator},
		ScoringStage{Scorer: d.Scorer},
		RecordStage{Metrics: d.Metrics},
	)
	return New(d.Logger, stages...)
}
