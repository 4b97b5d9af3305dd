// Package access implements the access controller that multiplexes many
// client-level opens of a storage object onto one aggregate open against the
// object's own provider.
package access

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/desertwitch/gopart/internal/storage"
)

// Provider is what a [Controller] raises and lowers its aggregate open
// against. Lowering is expected to succeed, an error returned while lowering
// is logged and otherwise ignored.
type Provider interface {
	SetAccess(level storage.Level) error
}

// Controller tracks which clients hold read-only or read-write access to a
// storage object, and the aggregate level held against the provider.
//
// The aggregate level is always the strongest level held by any client, and
// is [storage.LevelClosed] if and only if no client holds access.
type Controller struct {
	sync.Mutex
	provider    Provider
	readers     map[storage.ClientID]struct{}
	readWriters map[storage.ClientID]struct{}
	aggregate   storage.Level
	sealed      bool
	draining    bool
	onClosed    func()
}

// NewController returns a pointer to a new [Controller]. The provider may be
// nil for objects without a provider. The optional onClosed function is
// invoked, outside of the lock, every time the last client closes.
func NewController(provider Provider, onClosed func()) *Controller {
	return &Controller{
		provider:    provider,
		readers:     make(map[storage.ClientID]struct{}),
		readWriters: make(map[storage.ClientID]struct{}),
		onClosed:    onClosed,
	}
}

// Open grants the client the requested level. Holding the level or a
// stronger one already is a no-op, any other grant is denied while the
// controller drains. If the grant raises the aggregate level,
// the provider is raised first; should that fail, the grant is rolled back
// and [storage.ErrAccessDenied] is returned.
func (c *Controller) Open(client storage.ClientID, level storage.Level) error {
	if client == storage.AnyClient {
		return fmt.Errorf("(access) %w: empty client identity", storage.ErrInvalidState)
	}

	if level != storage.LevelReadOnly && level != storage.LevelReadWrite {
		return fmt.Errorf("(access) %w: cannot open at level %s", storage.ErrInvalidState, level)
	}

	c.Lock()
	defer c.Unlock()

	if c.sealed {
		return fmt.Errorf("(access) %w: object is sealed", storage.ErrAccessDenied)
	}

	held := c.levelOf(client)
	if held.Satisfies(level) {
		return nil
	}

	if c.draining {
		return fmt.Errorf("(access) %w: object is draining", storage.ErrAccessDenied)
	}

	c.setLevel(client, level)

	want := c.computeAggregate()
	if want > c.aggregate && c.provider != nil {
		if err := c.provider.SetAccess(want); err != nil {
			c.setLevel(client, held)

			return fmt.Errorf("(access) failed to raise provider to %s: %w: %w", want, storage.ErrAccessDenied, err)
		}
	}

	c.aggregate = want

	return nil
}

// Close releases any access the client holds. It fails with
// [storage.ErrNotOpen] if the client holds none. Lowering the provider never
// fails the call.
func (c *Controller) Close(client storage.ClientID) error {
	c.Lock()

	if c.levelOf(client) == storage.LevelClosed {
		c.Unlock()

		return fmt.Errorf("(access) %w: client %q holds no access", storage.ErrNotOpen, client)
	}

	c.setLevel(client, storage.LevelClosed)
	c.lowerProvider()

	closed := c.aggregate == storage.LevelClosed
	onClosed := c.onClosed

	c.Unlock()

	if closed && onClosed != nil {
		onClosed()
	}

	return nil
}

// Lower reduces the level a client holds. Lowering to
// [storage.LevelClosed] is a [Controller.Close], a level at or above the
// held one is a no-op. It fails with [storage.ErrNotOpen] if the client holds
// no access, and never because of the provider.
func (c *Controller) Lower(client storage.ClientID, level storage.Level) error {
	if level == storage.LevelClosed {
		return c.Close(client)
	}

	c.Lock()
	defer c.Unlock()

	held := c.levelOf(client)
	if held == storage.LevelClosed {
		return fmt.Errorf("(access) %w: client %q holds no access", storage.ErrNotOpen, client)
	}

	if level >= held {
		return nil
	}

	c.setLevel(client, level)
	c.lowerProvider()

	return nil
}

// lowerProvider lowers the provider to the aggregate of the held levels, if
// that is below the current one. Errors are logged and otherwise ignored.
func (c *Controller) lowerProvider() {
	want := c.computeAggregate()
	if want >= c.aggregate {
		return
	}

	if c.provider != nil {
		if err := c.provider.SetAccess(want); err != nil {
			slog.Warn("Provider failed to lower access (ignored).",
				"from", c.aggregate,
				"to", want,
				"err", err,
			)
		}
	}

	c.aggregate = want
}

// IsOpen reports whether the client holds any access. With
// [storage.AnyClient] it reports whether any client holds access.
func (c *Controller) IsOpen(client storage.ClientID) bool {
	c.Lock()
	defer c.Unlock()

	if client == storage.AnyClient {
		return len(c.readers) > 0 || len(c.readWriters) > 0
	}

	return c.levelOf(client) != storage.LevelClosed
}

// Seal rejects all future opens with [storage.ErrAccessDenied]. It only
// succeeds while no client holds access and returns whether it did.
func (c *Controller) Seal() bool {
	c.Lock()
	defer c.Unlock()

	if len(c.readers) > 0 || len(c.readWriters) > 0 {
		return false
	}

	c.sealed = true

	return true
}

// Unseal reverts [Controller.Seal]. A draining controller keeps draining.
func (c *Controller) Unseal() {
	c.Lock()
	defer c.Unlock()

	c.sealed = false
}

// Drain rejects opens by new clients and upgrades with
// [storage.ErrAccessDenied]. Clients already holding access keep it until
// they close, after which [Controller.Seal] can succeed.
func (c *Controller) Drain() {
	c.Lock()
	defer c.Unlock()

	c.draining = true
}

// Draining reports whether the controller rejects new opens.
func (c *Controller) Draining() bool {
	c.Lock()
	defer c.Unlock()

	return c.draining || c.sealed
}

// Sealed reports whether the controller rejects opens.
func (c *Controller) Sealed() bool {
	c.Lock()
	defer c.Unlock()

	return c.sealed
}

// Level returns the level the client holds.
func (c *Controller) Level(client storage.ClientID) storage.Level {
	c.Lock()
	defer c.Unlock()

	return c.levelOf(client)
}

// Aggregate returns the level currently held against the provider.
func (c *Controller) Aggregate() storage.Level {
	c.Lock()
	defer c.Unlock()

	return c.aggregate
}

// Holders returns a snapshot of all clients and the level they hold.
func (c *Controller) Holders() map[storage.ClientID]storage.Level {
	c.Lock()
	defer c.Unlock()

	holders := make(map[storage.ClientID]storage.Level, len(c.readers)+len(c.readWriters))
	for client := range c.readers {
		holders[client] = storage.LevelReadOnly
	}
	for client := range c.readWriters {
		holders[client] = storage.LevelReadWrite
	}

	return holders
}

// Readers returns a copy of the set of read-only clients.
func (c *Controller) Readers() map[storage.ClientID]struct{} {
	c.Lock()
	defer c.Unlock()

	return maps.Clone(c.readers)
}

// ReadWriters returns a copy of the set of read-write clients.
func (c *Controller) ReadWriters() map[storage.ClientID]struct{} {
	c.Lock()
	defer c.Unlock()

	return maps.Clone(c.readWriters)
}

func (c *Controller) levelOf(client storage.ClientID) storage.Level {
	if _, ok := c.readWriters[client]; ok {
		return storage.LevelReadWrite
	}
	if _, ok := c.readers[client]; ok {
		return storage.LevelReadOnly
	}

	return storage.LevelClosed
}

// setLevel moves a client into the set matching the level, keeping the sets
// disjoint.
func (c *Controller) setLevel(client storage.ClientID, level storage.Level) {
	delete(c.readers, client)
	delete(c.readWriters, client)

	switch level {
	case storage.LevelReadOnly:
		c.readers[client] = struct{}{}
	case storage.LevelReadWrite:
		c.readWriters[client] = struct{}{}
	case storage.LevelClosed:
	}
}

func (c *Controller) computeAggregate() storage.Level {
	if len(c.readWriters) > 0 {
		return storage.LevelReadWrite
	}
	if len(c.readers) > 0 {
		return storage.LevelReadOnly
	}

	return storage.LevelClosed
}
