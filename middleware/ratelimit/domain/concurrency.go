package domain

import "context"

// SlotPool limita quantas requisições ficam em processamento ao mesmo tempo.
// A decodificação de imagem é o trecho caro; o pool evita que uma rajada de
// uploads grandes esgote memória antes do rate limit por cliente agir.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Em caso de sucesso, release deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
