package sheet

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies the outer compression of an uploaded file.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGZ
	CompressionBZ2
	CompressionXZ
	CompressionZSTD
)

var compressionExts = []struct {
	ext  string
	kind Compression
}{
	{".gz", CompressionGZ},
	{".bz2", CompressionBZ2},
	{".xz", CompressionXZ},
	{".zst", CompressionZSTD},
}

// DetectCompression returns the compression implied by name's suffix and
// the name with that suffix removed.
func DetectCompression(name string) (Compression, string) {
	lower := strings.ToLower(name)
	for _, c := range compressionExts {
		if strings.HasSuffix(lower, c.ext) {
			return c.kind, name[:len(name)-len(c.ext)]
		}
	}
	return CompressionNone, name
}

// String returns the file extension for the compression type.
func (c Compression) String() string {
	for _, e := range compressionExts {
		if e.kind == c {
			return e.ext
		}
	}
	return ""
}

// decompress wraps r with a reader for the given compression.
// The returned close function must be called once reading is done.
func decompress(r io.Reader, c Compression) (io.Reader, func() error, error) {
	noop := func() error { return nil }

	switch c {
	case CompressionNone:
		return r, noop, nil

	case CompressionGZ:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gz, gz.Close, nil

	case CompressionBZ2:
		return bzip2.NewReader(r), noop, nil

	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("xz reader: %w", err)
		}
		return xr, noop, nil

	case CompressionZSTD:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd reader: %w", err)
		}
		return dec, func() error {
			dec.Close()
			return nil
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported compression %d", c)
	}
}

// Format is the tabular format inside any compression layer.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
)

// DetectFormat returns the tabular format for name (after compression
// suffixes are stripped).
func DetectFormat(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	case ".csv", ".txt":
		return FormatCSV, true
	case ".tsv":
		return FormatTSV, true
	default:
		return "", false
	}
}

// Supported reports whether name has a readable extension.
func Supported(name string) bool {
	_, inner := DetectCompression(name)
	_, ok := DetectFormat(inner)
	return ok
}
