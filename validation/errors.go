package validation

import "errors"

// ErrInvalid casa com toda rejeição devolvida por este pacote.
var ErrInvalid = errors.New("invalid input")

// Error é uma rejeição de validação. Reason pode ser exibido ao cliente.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Is(target error) bool { return target == ErrInvalid }

func reject(reason string) error { return &Error{Reason: reason} }

// Reason extrai o motivo de um erro de validação, ou "" quando o erro não veio
// deste pacote.
func Reason(err error) string {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}
