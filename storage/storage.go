package storage

import (
	"encoding/base64"

	"github.com/minerva-studio/meialian-bibliography-sub004/bytepool"
	"github.com/minerva-studio/meialian-bibliography-sub004/internal/obs"
	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
)

// defaultPoolClasses mirrors the teacher's encoder pool's approach of
// pre-seeding a handful of common buffer sizes rather than growing the
// class table purely on demand; any stride not listed here still gets a
// pool lazily via FixedBytePool.Rent.
var defaultPoolClasses = []int{layout.HeaderSize, 64, 128, 256, 512, 1024, 4096}

// Storage is the top-level handle onto one independent container tree: it
// owns the buffer pool and the registry backing every container reachable
// from Root, and is the entry point for the binary/JSON serialization
// adapters (storage/binary, storage/jsonadapter) and for disposal.
type Storage struct {
	pool *bytepool.FixedBytePool
	reg  *Registry
	Root StorageObject
	log  *obs.Logger
}

// New constructs a Storage whose root container has the given shape. A nil
// rootLayout materializes a field-less root (fields can be added later via
// Rescheme/AddScalarField and friends, or by the JSON adapter).
func New(rootLayout *layout.ContainerLayout) (*Storage, error) {
	if rootLayout == nil {
		lay, err := layout.Build("", nil)
		if err != nil {
			return nil, err
		}
		rootLayout = lay
	}

	pool := bytepool.New()
	for _, size := range defaultPoolClasses {
		pool.Rent(size, false) // pre-warms the size class's sync.Pool
	}
	reg := NewRegistry(pool)
	root := reg.CreateAndRegister(rootLayout)

	return &Storage{
		pool: pool,
		reg:  reg,
		Root: newStorageObject(reg, root),
		log:  obs.Default().Module("storage"),
	}, nil
}

// Registry returns the Storage's backing registry, for the binary/JSON
// serializer adapters that need to materialize containers outside this
// package (storage/binary.Parse, storage/jsonadapter.Unmarshal).
func (s *Storage) Registry() *Registry { return s.reg }

// Pool returns the Storage's backing buffer pool, mainly for diagnostics
// and tests; application code should not need to touch it directly.
func (s *Storage) Pool() *bytepool.FixedBytePool { return s.pool }

// Dispose tears down the entire tree rooted at s.Root, recursively
// unregistering every reachable container and returning their buffers to
// the pool. Subsequent use of s.Root (or any handle derived from it) fails
// with Disposed/StaleHandle.
func (s *Storage) Dispose() error {
	c, err := s.Root.resolve()
	if err != nil {
		return err
	}
	s.reg.Unregister(c)
	s.log.Debug("disposed storage tree")
	return nil
}

// ToBase64 is a convenience wrapper over a caller-supplied binary dump,
// matching the language-neutral surface's to_base64() helper: callers
// outside this package dump with storage/binary.Dump(s.Root) and pass the
// result here.
func ToBase64(binaryDump []byte) string {
	return base64.StdEncoding.EncodeToString(binaryDump)
}

// FromBase64 decodes a base64 string back into the raw bytes expected by
// storage/binary.Parse.
func FromBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, wrapErr(KindBadFormat, err, "invalid base64 input")
	}
	return b, nil
}
