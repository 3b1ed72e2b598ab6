// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers.

package ratelimit

import (
	"strconv"
	"time"
)

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

// formatRetryAfter arredonda para cima em segundos inteiros (Retry-After não
// aceita fração). Nunca devolve menos que 1.
func formatRetryAfter(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return formatInt64(secs)
}
