// Package stream implements the bstream binary protocol surface: the Writer
// and Reader engines applications use to move primitives, strings,
// skip-offsets, and register-backed references through a buffer.Sink or
// buffer.Source.
//
// Both engines assume host-native byte order on both peers; there is no
// endianness tag on the wire. A single Writer or Reader must be driven by one
// goroutine at a time; the engines perform no internal locking.
//
// # Published registers
//
// A Directory binds registry ids (0-14) to local registers and entry codecs.
// Settings, the immutable negotiation descriptor shared between peers, states
// per registry id which of four handle encodings a stream uses: LocalHandle,
// Identifier, PublishOnDemand, or PublishOnChange. The Writer tracks, per
// registry, how many entries it has already published to its receiver; the
// Reader maintains a private append-only mirror of each published registry,
// populated strictly in arrival order so handle numbering matches the sender.
package stream
