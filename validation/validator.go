package validation

import (
	"slices"
	"strings"
)

const (
	DefaultMaxFileSize   int64 = 16 * 1024 * 1024
	DefaultMaxTextLength       = 1000
	DefaultMaxPixels     int64 = 100_000_000
)

// DefaultAllowedExtensions é a allow-list de upload quando nada é configurado.
var DefaultAllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "webp"}

// Validator guarda os limites dos dois caminhos de validação. É imutável depois
// de New e seguro para uso concorrente.
type Validator struct {
	extensions    map[string]struct{}
	allowedList   string
	maxFileSize   int64
	maxTextLength int
	maxPixels     int64
}

type Option func(*Validator)

// WithAllowedExtensions substitui a allow-list. Sem diferenciar maiúsculas,
// ponto inicial opcional (".png" == "png").
func WithAllowedExtensions(exts ...string) Option {
	return func(v *Validator) {
		v.extensions = make(map[string]struct{}, len(exts))
		for _, e := range exts {
			e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
			if e != "" {
				v.extensions[e] = struct{}{}
			}
		}
	}
}

func WithMaxFileSize(n int64) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxFileSize = n
		}
	}
}

func WithMaxTextLength(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxTextLength = n
		}
	}
}

func WithMaxPixels(n int64) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxPixels = n
		}
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{
		maxFileSize:   DefaultMaxFileSize,
		maxTextLength: DefaultMaxTextLength,
		maxPixels:     DefaultMaxPixels,
	}
	WithAllowedExtensions(DefaultAllowedExtensions...)(v)
	for _, opt := range opts {
		opt(v)
	}

	list := make([]string, 0, len(v.extensions))
	for e := range v.extensions {
		list = append(list, e)
	}
	slices.Sort(list)
	v.allowedList = strings.Join(list, ", ")
	return v
}

func (v *Validator) MaxFileSize() int64 { return v.maxFileSize }

func (v *Validator) MaxTextLength() int { return v.maxTextLength }

// AllowedExtensions devolve a allow-list ordenada.
func (v *Validator) AllowedExtensions() []string {
	return strings.Split(v.allowedList, ", ")
}
