package binlog

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
)

// Codec turns an entry payload into the bytes a backend stores and back.
// Decode(Encode(v)) must equal v for every v, including nil and empty.
type Codec interface {
	// Name identifies the codec on the wire and in the durable schema.
	Name() string
	Encode(value []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// Codec names.
const (
	CodecRaw  = "raw"
	CodecZstd = "zstd"
)

// MinCompressSize is the smallest payload ZstdCodec compresses. Shorter
// payloads are stored verbatim behind a tag byte.
const MinCompressSize = 32

const (
	zstdTagRaw  byte = 0x00
	zstdTagZstd byte = 0x01
)

// RawCodec stores payloads unchanged.
type RawCodec struct{}

func (RawCodec) Name() string { return CodecRaw }

func (RawCodec) Encode(value []byte) ([]byte, error) {
	return bytes.Clone(nonNil(value)), nil
}

func (RawCodec) Decode(data []byte) ([]byte, error) {
	return bytes.Clone(nonNil(data)), nil
}

// ZstdCodec compresses payloads of at least MinCompressSize bytes with zstd.
// The first byte of every encoded payload tags the representation.
type ZstdCodec struct {
	level zstd.EncoderLevel

	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

// NewZstdCodec returns a zstd codec at the given zstd compression level
// (1-22). Zero or a negative level selects the fastest setting.
func NewZstdCodec(level int) *ZstdCodec {
	l := zstd.SpeedFastest
	if level > 0 {
		l = zstd.EncoderLevelFromZstd(level)
	}
	return &ZstdCodec{level: l}
}

func (c *ZstdCodec) Name() string { return CodecZstd }

func (c *ZstdCodec) init() error {
	c.once.Do(func() {
		c.enc, c.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level), zstd.WithEncoderConcurrency(1))
		if c.err != nil {
			return
		}
		c.dec, c.err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return c.err
}

func (c *ZstdCodec) Encode(value []byte) ([]byte, error) {
	if len(value) < MinCompressSize {
		out := make([]byte, 0, len(value)+1)
		out = append(out, zstdTagRaw)
		return append(out, value...), nil
	}
	if err := c.init(); err != nil {
		return nil, errors.Wrap(ErrEncoding, err, "codec", CodecZstd)
	}
	dst := make([]byte, 1, len(value)/2+1)
	dst[0] = zstdTagZstd
	return c.enc.EncodeAll(value, dst), nil
}

func (c *ZstdCodec) Decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrEncoding, fmt.Errorf("empty zstd payload"), "codec", CodecZstd)
	}
	switch data[0] {
	case zstdTagRaw:
		return bytes.Clone(nonNil(data[1:])), nil
	case zstdTagZstd:
		if err := c.init(); err != nil {
			return nil, errors.Wrap(ErrEncoding, err, "codec", CodecZstd)
		}
		out, err := c.dec.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, errors.Wrap(ErrEncoding, err, "codec", CodecZstd)
		}
		return nonNil(out), nil
	default:
		return nil, errors.Wrap(ErrEncoding, fmt.Errorf("unknown zstd tag 0x%02x", data[0]), "codec", CodecZstd)
	}
}

// CodecByName resolves a codec name as recorded by a backend. Level only
// applies to zstd.
func CodecByName(name string, level int) (Codec, error) {
	switch name {
	case CodecRaw, "", "none":
		return RawCodec{}, nil
	case CodecZstd:
		return NewZstdCodec(level), nil
	default:
		return nil, errors.Wrap(ErrEncoding, fmt.Errorf("unknown codec %q", name))
	}
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
