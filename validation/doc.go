// Package validation valida e sanitiza a entrada não confiável da classificação:
// texto livre do /classify-text e imagens enviadas ao /classify-image.
//
// Toda rejeição é um *Error com um motivo legível que pode ir direto para o
// cliente. Todas casam com ErrInvalid via errors.Is.
package validation
