package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/vamana/blobstore"
	ihash "github.com/hupe1980/vamana/internal/hash"
	"github.com/hupe1980/vamana/resource"
	"github.com/hupe1980/vamana/storage"
)

const (
	magic      = 0x504E5356 // "VSNP" little endian
	version    = 1
	headerSize = 32

	// chunkSize bounds each write so cancellation is observed while streaming.
	chunkSize = 1 << 20
)

var (
	// ErrCorrupt is returned for a blob that is not a readable snapshot.
	ErrCorrupt = errors.New("snapshot is corrupt")
	// ErrVersion is returned for a snapshot written by an unknown format version.
	ErrVersion = errors.New("unsupported snapshot version")
	// ErrSizeMismatch is returned when the destination region size differs
	// from the snapshot's raw size.
	ErrSizeMismatch = errors.New("snapshot size does not match region")
	// ErrChecksum is returned when the restored bytes fail the CRC32C check.
	ErrChecksum = errors.New("snapshot checksum mismatch")
	// ErrNoSnapshot is returned by Latest before anything was committed.
	ErrNoSnapshot = errors.New("no snapshot committed")
)

// Info describes a stored snapshot.
type Info struct {
	Name       string
	Codec      Codec
	RawSize    int64
	StoredSize int64
	Checksum   uint32
}

// Option configures Save and Restore.
type Option func(*options)

type options struct {
	codec  Codec
	level  int
	rc     *resource.Controller
	logger *slog.Logger
}

// WithCodec selects the compression codec. Default CodecLZ4.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithLevel sets the encoder level (zstd 1-22, lz4 1-9). Zero keeps the
// codec default.
func WithLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithResourceController meters snapshot IO through rc's limiter.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:  CodecLZ4,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

type header struct {
	codec    Codec
	rawSize  uint64
	checksum uint32
}

func (h header) encode() []byte {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(b[0:], magic)
	binary.LittleEndian.PutUint32(b[4:], version)
	b[8] = byte(h.codec)
	binary.LittleEndian.PutUint64(b[16:], h.rawSize)
	binary.LittleEndian.PutUint32(b[24:], h.checksum)
	return b
}

func decodeHeader(b []byte) (header, error) {
	if binary.LittleEndian.Uint32(b[0:]) != magic {
		return header{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint32(b[4:]); v != version {
		return header{}, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	h := header{
		codec:    Codec(b[8]),
		rawSize:  binary.LittleEndian.Uint64(b[16:]),
		checksum: binary.LittleEndian.Uint32(b[24:]),
	}
	if !h.codec.valid() {
		return header{}, fmt.Errorf("%w: codec %d", ErrCorrupt, b[8])
	}
	return h, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Save writes region to store under name.
//
// The blob is published only when the whole snapshot was written; on error
// the partial upload is aborted where the store supports it.
func Save(ctx context.Context, store blobstore.BlobStore, name string, region storage.Region, optFns ...Option) (info Info, err error) {
	o := applyOptions(optFns)
	if !o.codec.valid() {
		return Info{}, fmt.Errorf("unknown codec %d", uint8(o.codec))
	}
	start := time.Now()

	data := region.Bytes()
	h := header{
		codec:    o.codec,
		rawSize:  uint64(len(data)),
		checksum: ihash.CRC32C(data),
	}

	wb, err := store.Create(ctx, name)
	if err != nil {
		return Info{}, fmt.Errorf("create %q: %w", name, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if a, ok := wb.(blobstore.Aborter); ok {
			_ = a.Abort()
		} else {
			_ = wb.Close()
			_ = store.Delete(context.WithoutCancel(ctx), name)
		}
		o.logger.ErrorContext(ctx, "snapshot save failed", "name", name, "error", err)
	}()

	cw := &countingWriter{w: o.rc.Writer(ctx, wb)}
	if _, err = cw.Write(h.encode()); err != nil {
		return Info{}, fmt.Errorf("write header: %w", err)
	}

	enc, err := o.codec.encoder(cw, o.level)
	if err != nil {
		return Info{}, err
	}
	for off := 0; off < len(data); off += chunkSize {
		if err = ctx.Err(); err != nil {
			return Info{}, err
		}
		if _, err = enc.Write(data[off:min(off+chunkSize, len(data))]); err != nil {
			return Info{}, fmt.Errorf("write %q: %w", name, err)
		}
	}
	if err = enc.Close(); err != nil {
		return Info{}, fmt.Errorf("write %q: %w", name, err)
	}
	if err = wb.Close(); err != nil {
		return Info{}, fmt.Errorf("publish %q: %w", name, err)
	}

	info = Info{
		Name:       name,
		Codec:      o.codec,
		RawSize:    int64(h.rawSize),
		StoredSize: cw.n,
		Checksum:   h.checksum,
	}
	o.logger.InfoContext(ctx, "snapshot saved",
		"name", name,
		"codec", o.codec.String(),
		"raw_bytes", info.RawSize,
		"stored_bytes", info.StoredSize,
		"duration", time.Since(start),
	)
	return info, nil
}

// Restore reads the snapshot name into dst. dst must already be reserved
// with exactly the snapshot's raw size. On any error after the size check
// dst is zeroed and flushed.
func Restore(ctx context.Context, store blobstore.BlobStore, name string, dst storage.Region, optFns ...Option) (info Info, err error) {
	o := applyOptions(optFns)
	start := time.Now()

	blob, err := store.Open(ctx, name)
	if err != nil {
		return Info{}, fmt.Errorf("open %q: %w", name, err)
	}
	defer blob.Close()

	r := o.rc.Reader(ctx, blobstore.NewReader(ctx, blob))

	hb := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hb); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Info{}, fmt.Errorf("%w: short header", ErrCorrupt)
		}
		return Info{}, err
	}
	h, err := decodeHeader(hb)
	if err != nil {
		return Info{}, err
	}
	if int64(h.rawSize) != dst.Size() {
		return Info{}, fmt.Errorf("%w: snapshot %d bytes, region %d bytes", ErrSizeMismatch, h.rawSize, dst.Size())
	}

	out := dst.Bytes()
	defer func() {
		if err != nil {
			clear(out)
			_ = dst.Flush()
			o.logger.ErrorContext(ctx, "snapshot restore failed", "name", name, "error", err)
		}
	}()

	dec, err := h.codec.decoder(r)
	if err != nil {
		return Info{}, err
	}
	defer dec.Close()

	crc := ihash.NewCRC32C()
	if err = readInto(ctx, dec, out, crc); err != nil {
		return Info{}, err
	}
	if n, _ := dec.Read(make([]byte, 1)); n != 0 {
		return Info{}, fmt.Errorf("%w: trailing data", ErrCorrupt)
	}
	if crc.Sum32() != h.checksum {
		return Info{}, ErrChecksum
	}
	if err = dst.Flush(); err != nil {
		return Info{}, err
	}

	info = Info{
		Name:       name,
		Codec:      h.codec,
		RawSize:    int64(h.rawSize),
		StoredSize: blob.Size(),
		Checksum:   h.checksum,
	}
	o.logger.InfoContext(ctx, "snapshot restored",
		"name", name,
		"codec", h.codec.String(),
		"raw_bytes", info.RawSize,
		"duration", time.Since(start),
	)
	return info, nil
}

func readInto(ctx context.Context, r io.Reader, out []byte, h hash.Hash32) error {
	for off := 0; off < len(out); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+chunkSize, len(out))
		n, err := io.ReadFull(r, out[off:end])
		h.Write(out[off : off+n])
		off += n
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: truncated at %d of %d bytes", ErrCorrupt, off, len(out))
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	return nil
}

// Commit points CURRENT at name.
func Commit(ctx context.Context, store blobstore.BlobStore, name string) error {
	if err := store.Put(ctx, blobstore.CurrentName, []byte(name)); err != nil {
		return fmt.Errorf("commit %q: %w", name, err)
	}
	return nil
}

// Latest returns the name CURRENT points at.
func Latest(ctx context.Context, store blobstore.BlobStore) (string, error) {
	blob, err := store.Open(ctx, blobstore.CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", ErrNoSnapshot
		}
		return "", err
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return "", err
	}
	name := string(bytes.TrimSpace(data))
	if name == "" {
		return "", ErrNoSnapshot
	}
	return name, nil
}

// Publish saves region under name and commits it as CURRENT.
func Publish(ctx context.Context, store blobstore.BlobStore, name string, region storage.Region, optFns ...Option) (Info, error) {
	info, err := Save(ctx, store, name, region, optFns...)
	if err != nil {
		return Info{}, err
	}
	if err := Commit(ctx, store, name); err != nil {
		return Info{}, err
	}
	return info, nil
}

// RestoreLatest restores the snapshot CURRENT points at into dst.
func RestoreLatest(ctx context.Context, store blobstore.BlobStore, dst storage.Region, optFns ...Option) (Info, error) {
	name, err := Latest(ctx, store)
	if err != nil {
		return Info{}, err
	}
	return Restore(ctx, store, name, dst, optFns...)
}

// Peek reads only the header of name.
func Peek(ctx context.Context, store blobstore.BlobStore, name string) (Info, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return Info{}, fmt.Errorf("open %q: %w", name, err)
	}
	defer blob.Close()

	hb := make([]byte, headerSize)
	if n, err := blob.ReadAt(ctx, hb, 0); n < headerSize {
		if err == nil || errors.Is(err, io.EOF) {
			return Info{}, fmt.Errorf("%w: short header", ErrCorrupt)
		}
		return Info{}, err
	}
	h, err := decodeHeader(hb)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Name:       name,
		Codec:      h.codec,
		RawSize:    int64(h.rawSize),
		StoredSize: blob.Size(),
		Checksum:   h.checksum,
	}, nil
}
