// Package auth implementa a checagem de API key do gateway.
//
// Sem API_KEY configurada toda requisição passa (autenticação desligada).
// Com API_KEY, a credencial vem de X-API-Key ou de Authorization (o prefixo
// "Bearer " é removido) e precisa ser igual à chave configurada.
package auth
