// Package application contém os casos de uso (regras de aplicação) do controle
// de admissão.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Admit(key, cost) retorna uma Decision (allow/deny + retry-after).
package application
