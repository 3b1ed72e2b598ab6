// Package ratelimit fornece o adapter HTTP (net/http) do controle de admissão por cliente.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: caso de uso Admit (validação + decisão allow/deny) sem net/http
//   - infra: implementações concretas (token bucket, store com expiração, estatísticas)
//   - ratelimit (este pacote): middleware HTTP + extração de chave + tradução para status/headers + logs
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (header de chave, X-Forwarded-For, X-Real-IP, RemoteAddr)
//  2. Chama application.Service.Admit com custo 1
//  3. Se bloqueado, responde 429 com Retry-After
//  4. Se permitido, chama o próximo handler (ex: reverse proxy) sem alterações
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como BUCKET_CAPACITY, REFILL_RATE, IDLE_TTL e TRUST_PROXY_HEADERS.
package ratelimit
