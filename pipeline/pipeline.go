package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ecosort-gateway/classifier"
	"ecosort-gateway/middleware/ratelimit/domain"
	"ecosort-gateway/validation"
)

type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// Request é a entrada já extraída do transporte. Nenhum campo depende de HTTP.
type Request struct {
	Modality Modality
	Method   string
	Endpoint string

	ClientKey  domain.Key
	Credential string
	Now        time.Time

	// Load, se definido, lê o payload do transporte. Roda no início da
	// validação, depois de auth e admissão, para que clientes rejeitados não
	// façam o servidor ler o corpo.
	Load func(req *Request) error

	// HasPayload=false significa que o campo esperado nem veio
	// ("text" no JSON ou o arquivo no multipart).
	HasPayload bool

	Text string

	File         []byte
	Filename     string
	DeclaredSize int64
}

// Outcome é preenchido estágio a estágio.
type Outcome struct {
	Decision  domain.Decision
	Sanitized string
	Image     validation.ImageInfo
	Result    classifier.Result
}

// Stage é um passo do pipeline. Devolver erro interrompe a execução.
type Stage interface {
	Name() string
	Process(ctx context.Context, req *Request, out *Outcome) error
}

// StageFunc adapta uma função a Stage.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, req *Request, out *Outcome) error
}

func (s StageFunc) Name() string { return s.StageName }
func (s StageFunc) Process(ctx context.Context, req *Request, out *Outcome) error {
	return s.Fn(ctx, req, out)
}

type Pipeline struct {
	stages []Stage
	log    *slog.Logger
}

func New(log *slog.Logger, stages ...Stage) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{stages: stages, log: log}
}

// Stages devolve os nomes na ordem de execução.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executa os estágios em ordem. Erros que não são *RejectError são
// embrulhados com o nome do estágio e tratados como falha interna pelo chamador.
func (p *Pipeline) Run(ctx context.Context, req *Request) (*Outcome, error) {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	out := &Outcome{Decision: domain.Decision{Allowed: true}}

	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		err := s.Process(ctx, req, out)
		if err == nil {
			continue
		}

		var re *RejectError
		if errors.As(err, &re) {
			if re.Stage == "" {
				re.Stage = s.Name()
			}
			return out, re
		}
		p.log.Error("pipeline stage failed", "stage", s.Name(), "endpoint", req.Endpoint, "error", err)
		return out, fmt.Errorf("%s: %w", s.Name(), err)
	}
	return out, nil
}
