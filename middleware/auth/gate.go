package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const (
	HeaderAPIKey        = "X-API-Key"
	HeaderAuthorization = "Authorization"

	bearerPrefix = "Bearer "
)

// Gate guarda a chave configurada no processo. Zero value = autenticação desligada.
type Gate struct {
	Key string
}

func NewGate(configuredKey string) Gate {
	return Gate{Key: configuredKey}
}

// Enabled informa se há chave configurada.
func (g Gate) Enabled() bool { return g.Key != "" }

// Check aplica a regra sobre uma credencial já extraída ("" = ausente).
func (g Gate) Check(provided string) bool {
	return Check(provided, g.Key)
}

// Check compara a credencial com a chave configurada em tempo constante.
// configured vazio libera tudo.
func Check(provided, configured string) bool {
	if configured == "" {
		return true
	}
	provided = strings.TrimPrefix(provided, bearerPrefix)
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) == 1
}

// Credential extrai a credencial crua da requisição: X-API-Key tem prioridade
// sobre Authorization. O prefixo Bearer é tratado em Check.
func Credential(r *http.Request) string {
	if v := r.Header.Get(HeaderAPIKey); v != "" {
		return v
	}
	return r.Header.Get(HeaderAuthorization)
}
