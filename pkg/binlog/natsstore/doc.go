// Package natsstore implements a subscribeable binlog store on NATS
// JetStream.
//
// All entries live in one stream. Each name maps to its own subject under a
// common prefix, so per-name retention (capacity) is the stream's
// MaxMsgsPerSubject limit and a subscription is an ephemeral consumer
// filtered to one subject.
//
// Wire format: the message body is the codec-encoded value. Headers carry the
// timestamp (Binlog-Timestamp), the codec (Binlog-Codec) and, for readability,
// the name (Binlog-Name). The subject is authoritative for the name.
package natsstore
