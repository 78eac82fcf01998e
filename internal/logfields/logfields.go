package logfields

import (
	"log/slog"
	"net/url"
	"strings"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyStore          = "store"
	KeyName           = "name"
	KeyTimestamp      = "timestamp"
	KeyCount          = "count"
	KeySubscriptionID = "subscription_id"
	KeyStream         = "stream"
	KeySubject        = "subject"
	KeyCodec          = "codec"
	KeyOperation      = "operation"
	KeyQuery          = "query"
	KeyDurationMS     = "duration_ms"
	KeyJob            = "job"
	KeyAttempt        = "attempt"
	KeyPath           = "path"
	KeyURL            = "url"
	KeyAddr           = "addr"
	KeyError          = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Store(kind string) slog.Attr         { return slog.String(KeyStore, kind) }
func Name(n string) slog.Attr             { return slog.String(KeyName, n) }
func Timestamp(ts int64) slog.Attr        { return slog.Int64(KeyTimestamp, ts) }
func Count(n int64) slog.Attr             { return slog.Int64(KeyCount, n) }
func SubscriptionID(id string) slog.Attr  { return slog.String(KeySubscriptionID, id) }
func Stream(s string) slog.Attr           { return slog.String(KeyStream, s) }
func Subject(s string) slog.Attr          { return slog.String(KeySubject, s) }
func Codec(c string) slog.Attr           { return slog.String(KeyCodec, c) }
func Operation(op string) slog.Attr       { return slog.String(KeyOperation, op) }
func Query(q string) slog.Attr            { return slog.String(KeyQuery, q) }
func DurationMS(ms float64) slog.Attr     { return slog.Float64(KeyDurationMS, ms) }
func Job(j string) slog.Attr              { return slog.String(KeyJob, j) }
func Attempt(n int) slog.Attr             { return slog.Int(KeyAttempt, n) }
func Path(p string) slog.Attr             { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr              { return slog.String(KeyURL, RedactURL(u)) }
func Addr(a string) slog.Attr             { return slog.String(KeyAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// RedactURL hides the userinfo of every URL in a comma-separated server
// list. NATS accepts a bare token as the user part, so the whole userinfo
// goes, not only the password.
func RedactURL(raw string) string {
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		u, err := url.Parse(strings.TrimSpace(p))
		switch {
		case err != nil:
			if strings.Contains(p, "@") {
				parts[i] = "<redacted>"
			}
		case u.User != nil:
			u.User = url.User("redacted")
			parts[i] = u.String()
		}
	}
	return strings.Join(parts, ",")
}
