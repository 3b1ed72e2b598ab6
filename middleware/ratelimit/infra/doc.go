// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Bucket: token bucket com aritmética inteira em milissegundos
//   - Store: registro de buckets por chave, com expiração de chaves ociosas
//   - MemoryStatsStore, RedisStatsStore, PrometheusStats: estatísticas de decisão
package infra
