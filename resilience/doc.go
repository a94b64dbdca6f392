// Package resilience holds the small fault-tolerance primitives the relay
// uses around its edges:
//
//   - Retry: exponential backoff for producer stream establishment.
//   - CircuitBreaker: fails fast when the Redis mirror is unreachable.
//   - Limiter: caps concurrent observer sessions.
//   - Pacer: token bucket that spaces out replayed frames.
package resilience
