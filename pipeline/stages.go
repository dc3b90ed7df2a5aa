package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"ecosort-gateway/classifier"
	"ecosort-gateway/middleware/auth"
	"ecosort-gateway/middleware/ratelimit/application"
	"ecosort-gateway/middleware/ratelimit/domain"
	"ecosort-gateway/validation"
)

const (
	StageAuth       = "auth"
	StageAdmission  = "admission"
	StageValidation = "validation"
	StageScoring    = "scoring"
	StageRecord     = "record"
)

// AuthStage aplica o AccessGate sobre req.Credential.
type AuthStage struct {
	Gate auth.Gate
	Log  *slog.Logger
}

func (AuthStage) Name() string { return StageAuth }

func (s AuthStage) Process(_ context.Context, req *Request, _ *Outcome) error {
	if s.Gate.Check(req.Credential) {
		return nil
	}
	logger(s.Log).Warn("unauthorized access attempt", "client", req.ClientKey, "endpoint", req.Endpoint)
	return &RejectError{Kind: ErrUnauthorized, Reason: "Valid API key required"}
}

// AdmissionStage consulta o limiter por ClientKey. Stats é best-effort.
type AdmissionStage struct {
	Service application.Service
	Stats   domain.StatsStore
	Log     *slog.Logger
}

func (AdmissionStage) Name() string { return StageAdmission }

func (s AdmissionStage) Process(ctx context.Context, req *Request, out *Outcome) error {
	dec := s.Service.Decide(req.ClientKey, req.Now)
	out.Decision = dec

	if s.Stats != nil {
		ev := domain.StatsEvent{
			Key:      req.ClientKey,
			Allowed:  dec.Allowed,
			Method:   req.Method,
			Endpoint: req.Endpoint,
			At:       req.Now,
		}
		if err := s.Stats.Record(ctx, ev); err != nil {
			logger(s.Log).Warn("admission stats record failed", "error", err)
		}
	}

	if dec.Allowed {
		return nil
	}
	logger(s.Log).Warn("rate limit exceeded", "client", req.ClientKey, "endpoint", req.Endpoint, "retry_after", dec.RetryAfter)
	return &RejectError{Kind: ErrRateLimited, Reason: "Rate limit exceeded", RetryAfter: dec.RetryAfter}
}

// ValidationStage valida e sanitiza o payload conforme a modalidade.
type ValidationStage struct {
	Validator *validation.Validator
}

func (ValidationStage) Name() string { return StageValidation }

func (s ValidationStage) Process(_ context.Context, req *Request, out *Outcome) error {
	if req.Load != nil {
		if err := req.Load(req); err != nil {
			if re, ok := AsReject(err); ok {
				return re
			}
			return err
		}
	}

	switch req.Modality {
	case ModalityText:
		if !req.HasPayload {
			return invalid("No text provided", nil)
		}
		text, err := s.Validator.Text(req.Text)
		if err != nil {
			return invalid(validation.Reason(err), err)
		}
		out.Sanitized = text

	case ModalityImage:
		if !req.HasPayload {
			return invalid("No image file provided", nil)
		}
		info, err := s.Validator.File(req.File, req.Filename, req.DeclaredSize)
		if err != nil {
			return invalid(validation.Reason(err), err)
		}
		out.Image = info

	default:
		return fmt.Errorf("unknown modality %q", req.Modality)
	}
	return nil
}

func invalid(reason string, cause error) *RejectError {
	return &RejectError{Kind: ErrInvalidInput, Reason: reason, Cause: cause}
}

// ScoringStage nunca falha: o Scorer já degrada para o Fallback.
type ScoringStage struct {
	Scorer *classifier.Scorer
}

func (ScoringStage) Name() string { return StageScoring }

func (s ScoringStage) Process(_ context.Context, req *Request, out *Outcome) error {
	switch req.Modality {
	case ModalityText:
		out.Result = s.Scorer.ClassifyText(out.Sanitized)
	case ModalityImage:
		out.Result = s.Scorer.ClassifyImage(out.Image.Width, out.Image.Height, out.Image.Format)
	}
	return nil
}

// ClassificationRecorder é satisfeito por *monitoring.Aggregator.
type ClassificationRecorder interface {
	RecordClassification(modality, category string)
}

type RecordStage struct {
	Metrics ClassificationRecorder
}

func (RecordStage) Name() string { return StageRecord }

func (s RecordStage) Process(_ context.Context, req *Request, out *Outcome) error {
	if s.Metrics != nil {
		s.Metrics.RecordClassification(string(req.Modality), out.Result.Category.String())
	}
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
