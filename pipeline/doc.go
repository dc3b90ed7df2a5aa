// Package pipeline executa uma requisição de classificação como uma sequência
// explícita de estágios:
//
//	Auth -> Admission -> Validation -> Scoring -> Record
//
// Cada estágio devolve nil (segue) ou um *RejectError (para). Não há retry
// interno: a rejeição volta uma vez, para quem chamou decidir.
package pipeline
