// Package monitoring agrega métricas de requisições e classificações, lê
// gauges do host (gopsutil), avalia a saúde do processo e dispara alertas.
//
// Todo estado é dono de quem o cria (Aggregator, AlertManager): nada de
// globais de pacote.
package monitoring
