package application

import (
	"fmt"
	"strings"

	"admission-gateway/middleware/ratelimit/domain"
)

const (
	DefaultCapacity            int64 = 5
	DefaultRefillRatePerSecond int64 = 10
)

// Service concentra a regra de aplicação do controle de admissão.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Capacity e RefillRatePerSecond valem para todas as chaves e são fixos
// durante a vida do Store. Zero usa os padrões (5 e 10/s); taxa negativa é
// repassada ao bucket e aparece como domain.ErrInvalidConfiguration.
type Service struct {
	Store               domain.LimiterStore
	Capacity            int64
	RefillRatePerSecond int64
}

// Admit decide se `cost` unidades de trabalho do cliente `key` podem seguir.
//
// Limite excedido volta como Decision{Allowed: false}, nunca como erro.
// Erros possíveis: domain.ErrInvalidInput (chave vazia, cost < 1) e
// domain.ErrInvalidConfiguration (taxa de reposição não positiva).
func (s Service) Admit(key domain.Key, cost int64) (domain.Decision, error) {
	if strings.TrimSpace(string(key)) == "" {
		return domain.Decision{}, fmt.Errorf("%w: empty client key", domain.ErrInvalidInput)
	}
	if cost < 1 {
		return domain.Decision{}, fmt.Errorf("%w: cost must be >= 1, got %d", domain.ErrInvalidInput, cost)
	}
	if s.Store == nil {
		return domain.Allow(0), nil
	}

	capacity := s.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	refill := s.RefillRatePerSecond
	if refill == 0 {
		refill = DefaultRefillRatePerSecond
	}

	lim := s.Store.GetOrCreate(key, capacity, refill)
	if lim == nil {
		return domain.Allow(0), nil
	}
	return lim.TryConsume(cost)
}
