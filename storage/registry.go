package storage

import (
	"sync"

	"github.com/minerva-studio/meialian-bibliography-sub004/bytepool"
	"github.com/minerva-studio/meialian-bibliography-sub004/internal/obs"
	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
	"github.com/minerva-studio/meialian-bibliography-sub004/valuecodec"
)

// wildID is the sentinel id carried by a container that has been
// allocated but not yet inserted into the registry's table.
const wildID = ^uint64(0)

// Registry is the process-wide id -> Container map. It owns id
// allocation/recycling and a per-layout freelist of disposed-but-reusable
// Container skeletons. A single mutex protects table/freed/nextID/
// freelists, per spec §4.2; the recursive ref-walk in Unregister runs
// without holding it.
type Registry struct {
	mu              sync.RWMutex
	nextID          uint64
	freed           []uint64
	table           map[uint64]*Container
	layoutFreelists map[*layout.ContainerLayout][]*Container
	pool            *bytepool.FixedBytePool
	events          *eventStore
	log             *obs.Logger
}

// NewRegistry creates an empty Registry backed by pool for buffer rental.
func NewRegistry(pool *bytepool.FixedBytePool) *Registry {
	return &Registry{
		table:           make(map[uint64]*Container),
		layoutFreelists: make(map[*layout.ContainerLayout][]*Container),
		pool:            pool,
		events:          newEventStore(),
		log:             obs.Default().Module("registry"),
	}
}

func (r *Registry) allocID() uint64 {
	if n := len(r.freed); n > 0 {
		id := r.freed[n-1]
		r.freed = r.freed[:n-1]
		return id
	}
	r.nextID++
	return r.nextID
}

// Get returns the container registered under id, or nil for id 0 or an
// id with no current registration.
func (r *Registry) Get(id uint64) *Container {
	if id == 0 {
		return nil
	}
	r.mu.RLock()
	c := r.table[id]
	r.mu.RUnlock()
	return c
}

// Register assigns c.id = next() and inserts it into the table. It fails
// if c is already registered under a real (non-wild, non-zero) id.
func (r *Registry) Register(c *Container) error {
	if c.id != 0 && c.id != wildID {
		return newErr(KindPoolViolation, "container %d is already registered", c.id)
	}
	r.mu.Lock()
	id := r.allocID()
	c.id = id
	r.table[id] = c
	r.mu.Unlock()
	return nil
}

// CreateWild allocates a container (reusing a pooled skeleton for lay if
// one is free) attached to the wild sentinel id. Wild containers can be
// adopted into the table later via Register.
func (r *Registry) CreateWild(lay *layout.ContainerLayout) *Container {
	r.mu.Lock()
	var c *Container
	if list := r.layoutFreelists[lay]; len(list) > 0 {
		c = list[len(list)-1]
		r.layoutFreelists[lay] = list[:len(list)-1]
	}
	r.mu.Unlock()

	if c == nil {
		r.log.Debug("layout freelist miss, allocating fresh container")
		c = NewContainer(lay, r.pool)
	} else {
		c.buffer = r.pool.Rent(lay.Stride, true)
		copy(c.buffer, lay.Blob)
		applyDefaults(c.buffer, lay)
	}
	c.id = wildID
	c.reg = r
	return c
}

// AdoptWild attaches an already-materialized container (typically one
// reconstructed by storage/binary's parser from raw bytes) to r under the
// wild sentinel id, ready for Register. It does not touch c's buffer.
func (r *Registry) AdoptWild(c *Container) {
	c.reg = r
	c.id = wildID
}

// CreateAndRegister materializes a fresh container from lay and
// registers it immediately.
func (r *Registry) CreateAndRegister(lay *layout.ContainerLayout) *Container {
	c := r.CreateWild(lay)
	_ = r.Register(c)
	return c
}

// Unregister removes c from the table (a no-op if c is already
// unregistered), recycles its id, then recursively tears down every
// container reachable through c's current Ref fields (depth-first,
// outside the lock), and finally returns c's buffer to the pool and c
// itself to its layout's freelist.
func (r *Registry) Unregister(c *Container) {
	if c == nil || c.id == 0 {
		return
	}

	r.mu.Lock()
	delete(r.table, c.id)
	r.freed = append(r.freed, c.id)
	c.id = 0
	r.mu.Unlock()

	for _, fh := range c.layout.Fields {
		k, _ := typekind.Unpack(fh.Type)
		if k != typekind.Ref {
			continue
		}
		span := c.buffer[fh.DataOffset : fh.DataOffset+fh.DataLength]
		for i := 0; i+8 <= len(span); i += 8 {
			childID := valuecodec.ReadRef(span[i : i+8])
			if childID == 0 {
				continue
			}
			if child := r.Get(childID); child != nil {
				r.Unregister(child)
			}
		}
	}

	r.pool.Return(c.buffer)
	c.buffer = nil
	c.bumpGeneration()

	r.mu.Lock()
	r.layoutFreelists[c.layout] = append(r.layoutFreelists[c.layout], c)
	r.mu.Unlock()
}

// Count returns the number of currently registered containers (for tests
// and diagnostics only; not part of the public surface).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table)
}
