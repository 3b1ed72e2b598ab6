// Package domain define contratos e tipos de domínio para o controle de admissão
// por cliente (token bucket por chave).
//
// Este pacote não depende de net/http nem de implementações concretas.
// Decisões negadas são valores (Decision), não erros; os únicos erros são
// ErrInvalidInput e ErrInvalidConfiguration.
package domain
