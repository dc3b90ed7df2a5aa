package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrInvalidInput = errors.New("invalid input")
)

// RejectError é a rejeição de um estágio. Kind é um dos sentinelas acima;
// Cause, quando houver, é o erro original (ex.: *validation.Error).
type RejectError struct {
	Kind       error
	Stage      string
	Reason     string
	RetryAfter time.Duration
	Cause      error
}

func (e *RejectError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Stage, e.Kind, e.Reason)
}

func (e *RejectError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// AsReject extrai o *RejectError de err, se houver.
func AsReject(err error) (*RejectError, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
