package binlog

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codecPayloads() map[string][]byte {
	rng := rand.New(rand.NewPCG(1, 2))
	random := make([]byte, 4096)
	for i := range random {
		random[i] = byte(rng.UintN(256))
	}
	return map[string][]byte{
		"nil":        nil,
		"empty":      {},
		"short":      {1, 2, 3},
		"threshold":  bytes.Repeat([]byte{7}, MinCompressSize),
		"repetitive": bytes.Repeat([]byte("binlog "), 500),
		"random":     random,
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codecs := []Codec{RawCodec{}, NewZstdCodec(0), NewZstdCodec(3)}

	for _, codec := range codecs {
		for name, payload := range codecPayloads() {
			t.Run(codec.Name()+"/"+name, func(t *testing.T) {
				encoded, err := codec.Encode(payload)
				require.NoError(t, err)

				decoded, err := codec.Decode(encoded)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(payload, decoded), "round trip changed payload")
				assert.NotNil(t, decoded)
			})
		}
	}
}

func TestZstdCodecTagging(t *testing.T) {
	codec := NewZstdCodec(1)

	short, err := codec.Encode([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{zstdTagRaw, 1, 2, 3}, short)

	long := bytes.Repeat([]byte{9}, 1024)
	compressed, err := codec.Encode(long)
	require.NoError(t, err)
	assert.Equal(t, zstdTagZstd, compressed[0])
	assert.Less(t, len(compressed), len(long))
}

func TestZstdCodecRejectsCorruptInput(t *testing.T) {
	codec := NewZstdCodec(1)

	tests := map[string][]byte{
		"empty":        {},
		"unknown tag":  {0x7f, 1, 2},
		"broken frame": {zstdTagZstd, 0xde, 0xad, 0xbe, 0xef},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrEncoding))
		})
	}
}

func TestCodecByName(t *testing.T) {
	raw, err := CodecByName("none", 0)
	require.NoError(t, err)
	assert.Equal(t, CodecRaw, raw.Name())

	z, err := CodecByName(CodecZstd, 5)
	require.NoError(t, err)
	assert.Equal(t, CodecZstd, z.Name())

	_, err = CodecByName("lz4", 0)
	assert.ErrorIs(t, err, ErrEncoding)
}
