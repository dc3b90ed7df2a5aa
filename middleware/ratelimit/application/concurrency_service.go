package application

import (
	"context"
	"time"

	"ecosort-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService controla quantas classificações rodam em paralelo.
// Não sabe nada sobre HTTP; quem chama traduz ok=false para 503.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta reservar uma vaga.
//   - AcquireTimeout <= 0: espera até o ctx da requisição encerrar.
//   - AcquireTimeout > 0: desiste após o timeout.
//
// Com ok=false nenhuma vaga foi reservada e release é nil.
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), ok bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}
