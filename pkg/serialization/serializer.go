// Package serialization encodes draft snapshot payloads. A payload carries
// a small header naming its codec and compression so a reader configured
// differently fails loudly instead of decoding garbage.
package serialization

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnknownCodec       = errors.New("unknown codec")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrFormatMismatch     = errors.New("payload format does not match serializer")
	ErrShortPayload       = errors.New("payload too short")
	ErrInvalidKeySize     = errors.New("encryption key must be 16, 24 or 32 bytes")
)

const formatVersion byte = 1

// Codec turns values into bytes and back.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// CompressionType represents compression algorithms
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
)

// Config holds serialization settings
type Config struct {
	Codec       Codec
	Compression CompressionType
	EncryptKey  []byte // AES key, optional
}

// Serializer runs the encode, compress, encrypt pipeline. It is safe for
// concurrent use.
type Serializer struct {
	config  Config
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

// NewSerializer creates a serializer. The zstd coders are built once and
// shared.
func NewSerializer(config Config) (*Serializer, error) {
	if config.Codec == nil {
		config.Codec = NewMsgPackCodec()
	}
	if config.Compression == "" {
		config.Compression = CompressionNone
	}
	if _, ok := compressionIDs[config.Compression]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, config.Compression)
	}
	if _, ok := codecIDs[config.Codec.Name()]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, config.Codec.Name())
	}
	if n := len(config.EncryptKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return nil, ErrInvalidKeySize
	}

	s := &Serializer{config: config}
	if config.Compression == CompressionZstd {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		s.zstdEnc, s.zstdDec = enc, dec
	}
	return s, nil
}

// FromNames builds a serializer from configuration strings.
func FromNames(codec, compression string, key []byte) (*Serializer, error) {
	c, err := CodecByName(codec)
	if err != nil {
		return nil, err
	}
	return NewSerializer(Config{
		Codec:       c,
		Compression: CompressionType(strings.ToLower(compression)),
		EncryptKey:  key,
	})
}

// DefaultSerializer uses msgpack with zstd.
func DefaultSerializer() *Serializer {
	s, err := NewSerializer(Config{Codec: NewMsgPackCodec(), Compression: CompressionZstd})
	if err != nil {
		panic(err)
	}
	return s
}

// Name describes the pipeline, e.g. "msgpack+zstd".
func (s *Serializer) Name() string {
	return s.config.Codec.Name() + "+" + string(s.config.Compression)
}

// Close releases the zstd decoder goroutines.
func (s *Serializer) Close() {
	if s.zstdDec != nil {
		s.zstdDec.Close()
	}
	if s.zstdEnc != nil {
		_ = s.zstdEnc.Close()
	}
}

// Serialize encodes, compresses and optionally encrypts v.
func (s *Serializer) Serialize(v any) ([]byte, error) {
	data, err := s.config.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("codec encoding failed: %w", err)
	}
	if data, err = s.compress(data); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	if len(s.config.EncryptKey) > 0 {
		if data, err = s.encrypt(data); err != nil {
			return nil, fmt.Errorf("encryption failed: %w", err)
		}
	}
	return append(s.header(), data...), nil
}

// Deserialize reverses Serialize.
func (s *Serializer) Deserialize(data []byte, v any) error {
	body, err := s.checkHeader(data)
	if err != nil {
		return err
	}
	if len(s.config.EncryptKey) > 0 {
		if body, err = s.decrypt(body); err != nil {
			return fmt.Errorf("decryption failed: %w", err)
		}
	}
	if body, err = s.decompress(body); err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}
	if err := s.config.Codec.Decode(body, v); err != nil {
		return fmt.Errorf("codec decoding failed: %w", err)
	}
	return nil
}

var (
	codecIDs       = map[string]byte{"json": 1, "msgpack": 2}
	compressionIDs = map[CompressionType]byte{CompressionNone: 0, CompressionGzip: 1, CompressionZstd: 2}
)

func (s *Serializer) header() []byte {
	var flags byte
	if len(s.config.EncryptKey) > 0 {
		flags = 1
	}
	return []byte{formatVersion, codecIDs[s.config.Codec.Name()], compressionIDs[s.config.Compression], flags}
}

func (s *Serializer) checkHeader(data []byte) ([]byte, error) {
	want := s.header()
	if len(data) < len(want) {
		return nil, ErrShortPayload
	}
	if !bytes.Equal(data[:len(want)], want) {
		return nil, fmt.Errorf("%w: have %v, want %v", ErrFormatMismatch, data[:len(want)], want)
	}
	return data[len(want):], nil
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	switch s.config.Compression {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		return s.zstdEnc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

func (s *Serializer) decompress(data []byte) ([]byte, error) {
	switch s.config.Compression {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		return s.zstdDec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

func (s *Serializer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.config.EncryptKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *Serializer) encrypt(data []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func (s *Serializer) decrypt(data []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, ErrShortPayload
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// CodecByName resolves "json" or "msgpack".
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "msgpack":
		return NewMsgPackCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
}

// JSONCodec implements JSON serialization
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (c *JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
func (c *JSONCodec) Name() string                    { return "json" }

// MsgPackCodec implements MessagePack serialization. Struct fields are
// keyed by their json tags so one set of tags serves both codecs, and
// untyped numbers decode as int64, uint64 or float64.
type MsgPackCodec struct{}

func (c *MsgPackCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *MsgPackCodec) Decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}

func (c *MsgPackCodec) Name() string { return "msgpack" }

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() Codec { return &JSONCodec{} }

// NewMsgPackCodec creates a new MessagePack codec
func NewMsgPackCodec() Codec { return &MsgPackCodec{} }
