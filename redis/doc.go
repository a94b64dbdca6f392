// Package redis mirrors the live frame feed onto a Redis pub/sub channel.
//
// The mirror is one more broadcast consumer. It holds its own cursor, resumes
// after lag instead of terminating, and PUBLISHes each frame's JSON so other
// relay instances or ad-hoc tools can tap the feed:
//
//	redis-cli SUBSCRIBE pitwall:frames
//
// Publish failures pass through a circuit breaker and are logged. They never
// reach the producer.
package redis
