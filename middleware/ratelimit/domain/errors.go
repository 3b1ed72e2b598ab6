package domain

import "errors"

var (
	// ErrInvalidInput: chave vazia ou custo não positivo. Rejeitado antes de
	// qualquer busca de bucket.
	ErrInvalidInput = errors.New("ratelimit: invalid input")

	// ErrInvalidConfiguration: taxa de reposição não positiva descoberta ao
	// calcular o retry-after. Não deve ser engolido como "sempre nega".
	ErrInvalidConfiguration = errors.New("ratelimit: invalid configuration")
)
