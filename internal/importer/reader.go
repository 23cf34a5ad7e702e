package importer

import (
	"bufio"
	"bytes"
	"context"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
)

const (
	maxLineSize = 1 << 20
	bloomFPR    = 0.001
)

// File is the parsed content of one export.
type File struct {
	Name     string
	Lines    int
	Records  []Record
	Rejected []Rejection

	// codes counts occurrences of each coupon code in Records. filter holds
	// the same keys.
	codes  map[string]int
	filter *bloom.BloomFilter
}

// contains reports whether code occurs in f. The filter answers most
// misses without touching the map.
func (f *File) contains(code string) bool {
	if !f.filter.TestString(code) {
		return false
	}
	return f.codes[code] > 0
}

// ReadFile streams a gzip-compressed JSON-lines export. Blank lines are
// skipped; lines that fail to parse are collected as rejections.
func ReadFile(ctx context.Context, path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = fh.Close() }()

	gz, err := pgzip.NewReader(fh)
	if err != nil {
		return nil, errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	f := &File{Name: path, codes: make(map[string]int)}
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		f.Lines++
		if f.Lines%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		def, err := ParseLine(line)
		if err != nil {
			rej := Rejection{File: path, Line: f.Lines, Reason: ReasonMalformed, Detail: err.Error()}
			var lerr *LineError
			if errors.As(err, &lerr) {
				rej.Reason, rej.Detail = lerr.Reason, lerr.Err.Error()
			}
			f.Rejected = append(f.Rejected, rej)
			continue
		}
		f.Records = append(f.Records, Record{File: path, Line: f.Lines, Def: def})
		f.codes[def.CouponCode]++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan %s", path)
	}

	f.filter = newFilter(len(f.codes))
	for code := range f.codes {
		f.filter.AddString(code)
	}
	return f, nil
}

func newFilter(n int) *bloom.BloomFilter {
	return bloom.NewWithEstimates(uint(max(n, 1)), bloomFPR)
}
