// Package rstream implements a super-stream producer and a chunk-consuming
// stream reader on top of a partitioned log broker: hash- or key-based
// routing across partitions, per-partition publisher confirms, and
// credit-controlled delivery of decoded chunk records to a handler.
//
// The binary wire protocol (connection framing, command codec) lives
// behind the pkg/rstream/wire.Transport interface and is not this
// package's concern; pkg/rstream/wire also exposes the in-memory
// Transport used by this package's own tests.
//
// rstream is the "RabbitMQ Streams" sibling of pkg/messaging's classic
// AMQP 0-9-1 queue/exchange adapters: same broker family, different
// protocol and delivery model (log offsets and chunks instead of acked
// queue deliveries).
package rstream
