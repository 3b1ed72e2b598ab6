package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

type Key string

// ReasonRateLimitExceeded é o motivo padrão de uma Decision negada.
const ReasonRateLimitExceeded = "rate limit exceeded"

// ReasonCostExceedsCapacity: o custo pedido é maior que a capacidade do
// bucket; esperar não resolve.
const ReasonCostExceedsCapacity = "cost exceeds bucket capacity"

// Limiter representa algo que pode decidir se `n` unidades de trabalho podem
// prosseguir agora.
//
// Uma negação por falta de tokens NÃO é erro: volta como Decision{Allowed: false}.
// Erros são reservados para entrada inválida ou configuração inválida.
type Limiter interface {
	TryConsume(n int64) (Decision, error)
}

// LimiterStore obtém (ou cria) o limiter de uma chave (ex: IP, API key, usuário).
//
// capacity/refillRatePerSecond só valem na criação; chamadas posteriores com
// outros valores para uma chave existente são ignoradas (o primeiro vence).
type LimiterStore interface {
	GetOrCreate(key Key, capacity, refillRatePerSecond int64) Limiter
}

type Decision struct {
	Allowed bool
	// Remaining é o saldo de tokens após a decisão.
	Remaining int64
	// RetryAfter é a estimativa de espera até haver tokens suficientes.
	// Se 0, não há recomendação (ex: permitido).
	RetryAfter time.Duration
	Reason     string
}

// RetryAfterMillis devolve RetryAfter em milissegundos inteiros.
func (d Decision) RetryAfterMillis() int64 {
	return d.RetryAfter.Milliseconds()
}

// Allow é a decisão positiva com o saldo restante.
func Allow(remaining int64) Decision {
	return Decision{Allowed: true, Remaining: remaining}
}

// Deny é a decisão negativa por limite excedido.
func Deny(remaining int64, retryAfter time.Duration) Decision {
	return Decision{
		Allowed:    false,
		Remaining:  remaining,
		RetryAfter: retryAfter,
		Reason:     ReasonRateLimitExceeded,
	}
}
