package storage

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Первый байт записи указывает формат тела
const (
	formatJSON byte = 'j'
	formatZstd byte = 'z'
)

// Codec сериализует снимки в JSON и, если включено, сжимает их zstd.
// Unmarshal понимает оба формата независимо от настройки.
type Codec struct {
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// NewCodec создаёт кодек. compression: "", "none" или "zstd".
func NewCodec(compression string) (*Codec, error) {
	var compress bool
	switch compression {
	case "", "none":
	case "zstd":
		compress = true
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Codec{compress: compress, enc: enc, dec: dec}, nil
}

func (c *Codec) Marshal(v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации: %w", err)
	}
	if !c.compress {
		return append([]byte{formatJSON}, body...), nil
	}
	return c.enc.EncodeAll(body, []byte{formatZstd}), nil
}

func (c *Codec) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("пустая запись")
	}

	body := data[1:]
	switch data[0] {
	case formatJSON:
	case formatZstd:
		var err error
		body, err = c.dec.DecodeAll(body, nil)
		if err != nil {
			return fmt.Errorf("ошибка распаковки zstd: %w", err)
		}
	default:
		return fmt.Errorf("неизвестный формат записи %q", data[0])
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("ошибка десериализации: %w", err)
	}
	return nil
}

// Close освобождает ресурсы zstd
func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}
