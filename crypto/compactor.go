package crypto

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/relaymesh/courier/domain"
)

// compactor is an instance of zstandard compression algorithm
type compactor struct {
	zEncodr *zstd.Encoder
	zDecodr *zstd.Decoder
}

func newCompactor(lvl domain.CompressionLevel) (*compactor, error) {
	zstdEncoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel(lvl)))
	if err != nil {
		return nil, fmt.Errorf(`creating zstd encoder failed - %v`, err)
	}

	zstdDecoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf(`creating zstd decoder failed - %v`, err)
	}

	return &compactor{zEncodr: zstdEncoder, zDecodr: zstdDecoder}, nil
}

func encoderLevel(lvl domain.CompressionLevel) zstd.EncoderLevel {
	switch lvl {
	case domain.CompressionFastest:
		return zstd.SpeedFastest
	case domain.CompressionBetter:
		return zstd.SpeedBetterCompression
	case domain.CompressionBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func (c *compactor) compress(data []byte) []byte {
	return c.zEncodr.EncodeAll(data, nil)
}

func (c *compactor) decompress(data []byte) ([]byte, error) {
	out, err := c.zDecodr.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf(`zstd decompression failed - %v`, err)
	}

	return out, nil
}
