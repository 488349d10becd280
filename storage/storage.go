package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/vamana/internal/fs"
	"github.com/hupe1980/vamana/internal/mmap"
	"github.com/hupe1980/vamana/resource"
)

var (
	// ErrRegionExists is returned when reserving a name that is already reserved.
	ErrRegionExists = errors.New("storage: region already exists")
	// ErrRegionNotFound is returned when opening a region that was never reserved.
	ErrRegionNotFound = errors.New("storage: region not found")
	// ErrInvalidSize is returned for non-positive reservation sizes.
	ErrInvalidSize = errors.New("storage: invalid region size")
	// ErrNoDirectory is returned when a disk region is reserved on a memory-only store.
	ErrNoDirectory = errors.New("storage: disk regions require a directory-backed store")
	// ErrClosed is returned after the store was closed.
	ErrClosed = errors.New("storage: store is closed")
	// ErrRegionInUse is returned by Close and Remove while a region still has references.
	ErrRegionInUse = errors.New("storage: region in use")
)

const (
	ramExt  = ".ram"
	diskExt = ".mmap"
)

// Preallocator reserves named regions.
type Preallocator interface {
	Reserve(name string, size int64, mode Memmap) error
}

// Storage opens reserved regions.
type Storage interface {
	Region(name string) (Region, error)
}

// Region is a fixed-size, byte-addressable area.
type Region interface {
	// Bytes returns the whole region. Its length equals Size and never changes.
	Bytes() []byte
	Size() int64
	Mode() Memmap
	// Flush makes the current contents durable where the store supports it.
	Flush() error
}

// Option configures a Store.
type Option func(*Store)

// WithFileSystem overrides the filesystem used for region files.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithResourceController charges resident regions to rc's memory budget.
func WithResourceController(rc *resource.Controller) Option {
	return func(s *Store) {
		s.rc = rc
	}
}

// Store implements Preallocator and Storage.
type Store struct {
	dir string
	fs  fs.FileSystem
	rc  *resource.Controller

	mu      sync.Mutex
	regions map[string]region
	closed  bool
}

type region interface {
	Region
	RefCounted
	retire() bool
	revive()
	close() error
}

// NewMemoryStore returns a store that keeps every region in process memory
// and never touches the filesystem. Only MemmapRAM regions are supported.
func NewMemoryStore(optFns ...Option) *Store {
	s := &Store{
		fs:      fs.Default,
		regions: make(map[string]region),
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string, optFns ...Option) (*Store, error) {
	s := NewMemoryStore(optFns...)
	s.dir = dir
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	return s, nil
}

// Dir returns the backing directory, or "" for memory-only stores.
func (s *Store) Dir() string {
	return s.dir
}

// Reserve allocates a new region of exactly size bytes.
func (s *Store) Reserve(name string, size int64, mode Memmap) error {
	if name == "" {
		return fmt.Errorf("storage: empty region name")
	}
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.regions[name]; ok {
		return fmt.Errorf("%w: %s", ErrRegionExists, name)
	}
	if s.onDisk(name) {
		return fmt.Errorf("%w: %s", ErrRegionExists, name)
	}

	var (
		r   region
		err error
	)
	switch mode {
	case MemmapRAM:
		r, err = s.reserveRAM(name, size)
	case MemmapDisk:
		r, err = s.reserveDisk(name, size)
	default:
		err = fmt.Errorf("storage: unknown memmap mode %d", mode)
	}
	if err != nil {
		return err
	}
	s.regions[name] = r
	return nil
}

// Region opens a previously reserved region.
func (s *Store) Region(name string) (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if r, ok := s.regions[name]; ok {
		return r, nil
	}
	if s.dir == "" {
		return nil, fmt.Errorf("%w: %s", ErrRegionNotFound, name)
	}

	var (
		r   region
		err error
	)
	switch {
	case s.exists(s.path(name, diskExt)):
		r, err = s.openDisk(name)
	case s.exists(s.path(name, ramExt)):
		r, err = s.openRAM(name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrRegionNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	s.regions[name] = r
	return r, nil
}

// Remove destroys a region and its backing file. It fails with
// ErrRegionInUse while the region has references.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if r, ok := s.regions[name]; ok {
		if !r.retire() {
			return fmt.Errorf("%w: %s", ErrRegionInUse, name)
		}
		errs = append(errs, r.close())
		delete(s.regions, name)
	}
	if s.dir != "" {
		for _, ext := range []string{ramExt, diskExt} {
			if err := s.fs.Remove(s.path(name, ext)); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every open region.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, r := range s.regions {
		errs = append(errs, r.Flush())
	}
	return errors.Join(errs...)
}

// Close flushes and releases every open region. It is idempotent. While any
// region has references Close fails with ErrRegionInUse and releases nothing.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	retired := make([]region, 0, len(s.regions))
	for name, r := range s.regions {
		if !r.retire() {
			for _, x := range retired {
				x.revive()
			}
			return fmt.Errorf("%w: %s", ErrRegionInUse, name)
		}
		retired = append(retired, r)
	}
	s.closed = true

	var errs []error
	for name, r := range s.regions {
		errs = append(errs, r.Flush(), r.close())
		delete(s.regions, name)
	}
	return errors.Join(errs...)
}

func (s *Store) path(name, ext string) string {
	return filepath.Join(s.dir, name+ext)
}

func (s *Store) exists(path string) bool {
	_, err := s.fs.Stat(path)
	return err == nil
}

func (s *Store) onDisk(name string) bool {
	if s.dir == "" {
		return false
	}
	return s.exists(s.path(name, ramExt)) || s.exists(s.path(name, diskExt))
}

func (s *Store) reserveRAM(name string, size int64) (region, error) {
	if err := s.rc.AcquireMemory(size); err != nil {
		return nil, fmt.Errorf("storage: reserve %s (%d bytes): %w", name, size, err)
	}
	r := &ramRegion{store: s, name: name, data: make([]byte, size)}
	if s.dir != "" {
		// Persist the empty layout so the name is taken on disk as well.
		if err := r.Flush(); err != nil {
			s.rc.ReleaseMemory(size)
			return nil, err
		}
	}
	return r, nil
}

func (s *Store) openRAM(name string) (region, error) {
	f, err := s.fs.OpenFile(s.path(name, ramExt), os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", name, err)
	}
	size := info.Size()
	if err := s.rc.AcquireMemory(size); err != nil {
		return nil, fmt.Errorf("storage: load %s (%d bytes): %w", name, size, err)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		s.rc.ReleaseMemory(size)
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return &ramRegion{store: s, name: name, data: data}, nil
}

func (s *Store) reserveDisk(name string, size int64) (region, error) {
	if s.dir == "" {
		return nil, ErrNoDirectory
	}
	path := s.path(name, diskExt)
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", name, err)
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(path)
		return nil, fmt.Errorf("storage: preallocate %s (%d bytes): %w", name, size, err)
	}
	r, err := mapDisk(f, size)
	if err != nil {
		_ = s.fs.Remove(path)
		return nil, fmt.Errorf("storage: map %s: %w", name, err)
	}
	return r, nil
}

func (s *Store) openDisk(name string) (region, error) {
	f, err := s.fs.OpenFile(s.path(name, diskExt), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("storage: stat %s: %w", name, err)
	}
	r, err := mapDisk(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("storage: map %s: %w", name, err)
	}
	return r, nil
}

// mapDisk maps f and takes ownership of it, closing it on failure.
func mapDisk(f fs.File, size int64) (region, error) {
	m, err := mmap.Map(f, int(size), mmap.ReadWrite)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	_ = m.Advise(mmap.AccessRandom)
	return &diskRegion{file: f, mapping: m}, nil
}

type ramRegion struct {
	refs
	store *Store
	name  string
	data  []byte
}

func (r *ramRegion) Bytes() []byte { return r.data }
func (r *ramRegion) Size() int64   { return int64(len(r.data)) }
func (r *ramRegion) Mode() Memmap  { return MemmapRAM }

func (r *ramRegion) Flush() error {
	if r.store.dir == "" {
		return nil
	}
	if err := fs.WriteFileAtomic(r.store.fs, r.store.path(r.name, ramExt), r.data, 0o644); err != nil {
		return fmt.Errorf("storage: persist %s: %w", r.name, err)
	}
	return nil
}

func (r *ramRegion) close() error {
	r.store.rc.ReleaseMemory(int64(len(r.data)))
	r.data = nil
	return nil
}

type diskRegion struct {
	refs
	file    fs.File
	mapping *mmap.Mapping
}

func (r *diskRegion) Bytes() []byte { return r.mapping.Bytes() }
func (r *diskRegion) Size() int64   { return int64(r.mapping.Size()) }
func (r *diskRegion) Mode() Memmap  { return MemmapDisk }

func (r *diskRegion) Flush() error {
	if err := r.mapping.Flush(); err != nil {
		return fmt.Errorf("storage: msync: %w", err)
	}
	return nil
}

func (r *diskRegion) close() error {
	return errors.Join(r.mapping.Close(), r.file.Close())
}
