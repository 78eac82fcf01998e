package natsstore

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// Message headers.
const (
	HeaderTimestamp = "Binlog-Timestamp"
	HeaderCodec     = "Binlog-Codec"
	HeaderName      = "Binlog-Name"
)

// emptyToken stands for the empty name. Encoded names are never one
// character long, so it cannot collide.
const emptyToken = "_"

// subjectToken encodes name as a single valid subject token.
func subjectToken(name string) string {
	if name == "" {
		return emptyToken
	}
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

func nameFromToken(token string) (string, error) {
	if token == emptyToken {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *Store) subject(name string) string {
	return s.prefix + "." + subjectToken(name)
}

// headerSafe reports whether name can travel as a header value unchanged.
func headerSafe(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7e {
			return false
		}
	}
	return true
}

func (s *Store) encode(e binlog.Entry) (*nats.Msg, error) {
	body, err := s.codec.Encode(e.Value)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(s.subject(e.Name))
	msg.Data = body
	msg.Header.Set(HeaderTimestamp, strconv.FormatInt(e.Timestamp, 10))
	msg.Header.Set(HeaderCodec, s.codec.Name())
	if headerSafe(e.Name) {
		msg.Header.Set(HeaderName, e.Name)
	}
	return msg, nil
}

// decode rebuilds an entry from a stored message.
func (s *Store) decode(subject string, h nats.Header, data []byte) (binlog.Entry, error) {
	token, ok := strings.CutPrefix(subject, s.prefix+".")
	if !ok || token == "" || strings.Contains(token, ".") {
		return binlog.Entry{}, errors.Wrap(binlog.ErrEncoding,
			fmt.Errorf("subject %q is outside prefix %q", subject, s.prefix), "subject", subject)
	}
	name, err := nameFromToken(token)
	if err != nil {
		return binlog.Entry{}, errors.Wrap(binlog.ErrEncoding, err, "subject", subject)
	}

	rawTS := h.Get(HeaderTimestamp)
	if rawTS == "" {
		return binlog.Entry{}, errors.Wrap(binlog.ErrEncoding,
			fmt.Errorf("missing %s header", HeaderTimestamp), "subject", subject)
	}
	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return binlog.Entry{}, errors.Wrap(binlog.ErrEncoding, err, "subject", subject)
	}

	codec, ok := s.codecs[h.Get(HeaderCodec)]
	if !ok {
		return binlog.Entry{}, errors.Wrap(binlog.ErrEncoding,
			fmt.Errorf("unknown codec %q", h.Get(HeaderCodec)), "subject", subject)
	}
	value, err := codec.Decode(data)
	if err != nil {
		return binlog.Entry{}, err
	}
	return binlog.Entry{Timestamp: ts, Name: name, Value: value}, nil
}
