// Package server expõe o pipeline de classificação e o monitoramento via HTTP
// (chi). Respostas seguem o envelope {"status", "timestamp", "data"|"error"}.
package server
