// Package sse writes Server-Sent Events to an HTTP response.
//
// Writer frames each payload as a data event, flushes it immediately, and
// emits comment lines as keepalives so proxies do not reap idle streams:
//
//	w, err := sse.NewWriter(rw)
//	go w.KeepAlive(ctx, 15*time.Second)
//	_ = w.Send(ctx, payload)
package sse
