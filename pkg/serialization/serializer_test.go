package serialization

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type draftPayload struct {
	ID     string         `json:"id"`
	Alias  string         `json:"alias"`
	Params map[string]any `json:"params"`
	X      float64        `json:"x"`
}

func samplePayload() draftPayload {
	return draftPayload{
		ID:    "worker.inference.llm-1",
		Alias: "llm repeated content repeated content repeated content",
		Params: map[string]any{
			"model":  "llama3",
			"stream": true,
			"stop":   []any{"a", "b"},
			"nested": map[string]any{"k": "v"},
		},
		X: 12.5,
	}
}

func TestCodecs(t *testing.T) {
	for _, codec := range []Codec{NewJSONCodec(), NewMsgPackCodec()} {
		t.Run(codec.Name(), func(t *testing.T) {
			in := samplePayload()
			encoded, err := codec.Encode(in)
			require.NoError(t, err)
			assert.NotEmpty(t, encoded)

			var out draftPayload
			require.NoError(t, codec.Decode(encoded, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestMsgPackCodec_UsesJSONTags(t *testing.T) {
	encoded, err := NewMsgPackCodec().Encode(draftPayload{ID: "x"})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, NewMsgPackCodec().Decode(encoded, &generic))
	assert.Equal(t, "x", generic["id"])
	assert.NotContains(t, generic, "ID")
}

func TestSerializer_Pipelines(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	tests := []struct {
		name        string
		codec       string
		compression string
		key         []byte
	}{
		{"json plain", "json", "none", nil},
		{"msgpack gzip", "msgpack", "gzip", nil},
		{"msgpack zstd", "msgpack", "zstd", nil},
		{"json zstd encrypted", "json", "zstd", key},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromNames(tt.codec, tt.compression, tt.key)
			require.NoError(t, err)
			defer s.Close()

			data, err := s.Serialize(samplePayload())
			require.NoError(t, err)

			var out draftPayload
			require.NoError(t, s.Deserialize(data, &out))
			assert.Equal(t, samplePayload(), out)
		})
	}
}

func TestSerializer_FormatMismatch(t *testing.T) {
	zstdS, err := FromNames("msgpack", "zstd", nil)
	require.NoError(t, err)
	gzipS, err := FromNames("msgpack", "gzip", nil)
	require.NoError(t, err)

	data, err := zstdS.Serialize(samplePayload())
	require.NoError(t, err)

	var out draftPayload
	assert.ErrorIs(t, gzipS.Deserialize(data, &out), ErrFormatMismatch)
	assert.ErrorIs(t, gzipS.Deserialize([]byte{1}, &out), ErrShortPayload)
}

func TestSerializer_ConfigErrors(t *testing.T) {
	_, err := FromNames("xml", "none", nil)
	assert.ErrorIs(t, err, ErrUnknownCodec)

	_, err = FromNames("json", "lz4", nil)
	assert.ErrorIs(t, err, ErrUnknownCompression)

	_, err = FromNames("json", "none", []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestDefaultSerializer(t *testing.T) {
	s := DefaultSerializer()
	defer s.Close()
	assert.Equal(t, "msgpack+zstd", s.Name())
}

func BenchmarkSerializer_Default(b *testing.B) {
	s := DefaultSerializer()
	defer s.Close()
	payload := samplePayload()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := s.Serialize(payload)
		var out draftPayload
		_ = s.Deserialize(data, &out)
	}
}
