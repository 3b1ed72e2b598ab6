package infra

import (
	"context"
	"errors"

	"admission-gateway/middleware/ratelimit/domain"
)

// MultiStats repassa cada evento para todos os stores, juntando os erros.
type MultiStats []domain.StatsStore

// NewMultiStats ignora entradas nil. Devolve nil se não sobrar nenhuma.
func NewMultiStats(stores ...domain.StatsStore) domain.StatsStore {
	out := make(MultiStats, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
