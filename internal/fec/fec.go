// Package fec implements a partition object protected by Reed-Solomon
// parity. It overrides the forwarding of its partition for writes, which
// compute parity along with the data, but leaves the access bookkeeping to
// the partition object.
package fec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/storage"
	"github.com/klauspost/reedsolomon"
)

// Object is a storage object exposing the data area of a protected
// partition. Writes must cover whole stripes.
type Object struct {
	inner  *partition.Object
	layout Layout
	enc    reedsolomon.Encoder
}

// New returns a pointer to a new [Object] over the partition.
func New(inner *partition.Object, dataShards, parityShards int, shardSize uint64) (*Object, error) {
	layout, err := NewLayout(inner.Size(), dataShards, parityShards, shardSize)
	if err != nil {
		return nil, err
	}

	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("(fec) failed to create encoder: %w", err)
	}

	return &Object{
		inner:  inner,
		layout: layout,
		enc:    enc,
	}, nil
}

// Layout returns the stripe layout.
func (o *Object) Layout() Layout {
	return o.layout
}

// Partition returns the protected partition object.
func (o *Object) Partition() *partition.Object {
	return o.inner
}

func (o *Object) Open(client storage.ClientID, level storage.Level) error {
	return o.inner.Open(client, level)
}

func (o *Object) Close(client storage.ClientID) error {
	return o.inner.Close(client)
}

func (o *Object) IsOpen(client storage.ClientID) bool {
	return o.inner.IsOpen(client)
}

// Size returns the size of the data area.
func (o *Object) Size() uint64 {
	return o.layout.DataSize()
}

// Read reads from the data area, which is not translated.
func (o *Object) Read(client storage.ClientID, byteStart uint64, buf []byte, attrs *storage.Attributes, done storage.Completion) error {
	if held := o.inner.Controller().Level(client); held == storage.LevelClosed {
		return fmt.Errorf("(fec) %w: client %q holds no access", storage.ErrNotOpen, client)
	}

	if err := o.checkRange(byteStart, uint64(len(buf))); err != nil {
		return err
	}

	return o.inner.Read(client, byteStart, buf, attrs, done)
}

// Write writes whole stripes together with their parity. The completion
// reports the data bytes written and the first failure of either write.
func (o *Object) Write(client storage.ClientID, byteStart uint64, buf []byte, attrs *storage.Attributes, done storage.Completion) error {
	if done == nil {
		return fmt.Errorf("(fec) %w: write without completion", storage.ErrInvalidState)
	}

	if held := o.inner.Controller().Level(client); !held.Satisfies(storage.LevelReadWrite) {
		return fmt.Errorf("(fec) %w: client %q holds %s", storage.ErrNotOpen, client, held)
	}

	if err := o.checkRange(byteStart, uint64(len(buf))); err != nil {
		return err
	}

	if !o.layout.Aligned(byteStart, uint64(len(buf))) {
		return fmt.Errorf("(fec) %w: write [%d, +%d) with stripes of %d bytes", storage.ErrMisaligned, byteStart, len(buf), o.layout.StripeData())
	}

	if len(buf) == 0 {
		go done(storage.Result{})

		return nil
	}

	parity, err := o.encode(buf)
	if err != nil {
		return err
	}

	j := &join{pending: 2, done: done}

	if err := o.inner.Write(client, byteStart, buf, attrs, j.data); err != nil {
		return err //nolint:wrapcheck
	}

	stripe := byteStart / o.layout.StripeData()
	if err := o.inner.Write(client, o.layout.ParityOffset(stripe), parity, attrs, j.parity); err != nil {
		j.parity(storage.Result{Err: err})
	}

	return nil
}

// encode returns the parity of the stripes in buf, stripe after stripe.
func (o *Object) encode(buf []byte) ([]byte, error) {
	l := o.layout
	stripes := uint64(len(buf)) / l.StripeData()
	parity := make([]byte, stripes*l.StripeParity())

	for i := range stripes {
		shards := o.shards(buf[i*l.StripeData():(i+1)*l.StripeData()], parity[i*l.StripeParity():(i+1)*l.StripeParity()])
		if err := o.enc.Encode(shards); err != nil {
			return nil, fmt.Errorf("(fec) failed to encode stripe: %w", err)
		}
	}

	return parity, nil
}

// shards splits the data and parity of one stripe into shard views.
func (o *Object) shards(data, parity []byte) [][]byte {
	l := o.layout
	shards := make([][]byte, 0, l.DataShards+l.ParityShards)

	for i := range uint64(l.DataShards) {
		shards = append(shards, data[i*l.ShardSize:(i+1)*l.ShardSize])
	}
	for i := range uint64(l.ParityShards) {
		shards = append(shards, parity[i*l.ShardSize:(i+1)*l.ShardSize])
	}

	return shards
}

// Synchronize flushes the data area and the matching parity. A zero length
// flushes the whole partition.
func (o *Object) Synchronize(client storage.ClientID, offset, length uint64, opts storage.SyncOptions) error {
	if length == 0 {
		if offset >= o.Size() {
			return fmt.Errorf("(fec) %w: offset %d exceeds size %d", storage.ErrOutOfRange, offset, o.Size())
		}

		return o.inner.Synchronize(client, 0, 0, opts)
	}

	if err := o.checkRange(offset, length); err != nil {
		return err
	}

	if err := o.inner.Synchronize(client, offset, length, opts); err != nil {
		return err //nolint:wrapcheck
	}

	first, last := o.stripeSpan(offset, length)

	return o.inner.Synchronize(client, o.layout.ParityOffset(first), (last-first)*o.layout.StripeParity(), opts)
}

// Unmap releases whole stripes together with their parity. Without extents
// the whole partition is released.
func (o *Object) Unmap(client storage.ClientID, extents []storage.Extent, opts storage.UnmapOptions) error {
	if len(extents) == 0 {
		return o.inner.Unmap(client, nil, opts)
	}

	translated := make([]storage.Extent, 0, 2*len(extents))
	for _, ext := range extents {
		if ext.Length == 0 {
			continue
		}

		if err := o.checkRange(ext.Offset, ext.Length); err != nil {
			return err
		}

		if !o.layout.Aligned(ext.Offset, ext.Length) {
			return fmt.Errorf("(fec) %w: unmap [%d, +%d) with stripes of %d bytes", storage.ErrMisaligned, ext.Offset, ext.Length, o.layout.StripeData())
		}

		first, last := o.stripeSpan(ext.Offset, ext.Length)
		translated = append(translated, ext, storage.Extent{
			Offset: o.layout.ParityOffset(first),
			Length: (last - first) * o.layout.StripeParity(),
		})
	}

	if len(translated) == 0 {
		return nil
	}

	return o.inner.Unmap(client, translated, opts)
}

func (o *Object) SetPriority(client storage.ClientID, extents []storage.Extent, priority storage.Priority) error {
	return o.inner.SetPriority(client, extents, priority)
}

// GetProvisionStatus reports the allocation state of the data area.
func (o *Object) GetProvisionStatus(client storage.ClientID, offset, length uint64, opts storage.ProvisionOptions) ([]storage.ProvisionExtent, error) {
	if offset >= o.Size() {
		return nil, fmt.Errorf("(fec) %w: offset %d exceeds size %d", storage.ErrOutOfRange, offset, o.Size())
	}

	if length == 0 || length > o.Size()-offset {
		length = o.Size() - offset
	}

	return o.inner.GetProvisionStatus(client, offset, length, opts)
}

func (o *Object) LockPhysicalExtents(client storage.ClientID) error {
	return o.inner.LockPhysicalExtents(client)
}

// CopyPhysicalExtent translates a range of the data area. The returned
// length never reaches into the parity area.
func (o *Object) CopyPhysicalExtent(client storage.ClientID, offset, length uint64) (uint64, uint64, error) {
	if offset >= o.Size() {
		return 0, 0, fmt.Errorf("(fec) %w: offset %d exceeds size %d", storage.ErrOutOfRange, offset, o.Size())
	}

	if length == 0 || length > o.Size()-offset {
		length = o.Size() - offset
	}

	return o.inner.CopyPhysicalExtent(client, offset, length)
}

func (o *Object) UnlockPhysicalExtents(client storage.ClientID) error {
	return o.inner.UnlockPhysicalExtents(client)
}

// Verify reads every stripe and checks its parity. It returns the indices of
// the stripes whose parity does not match.
func (o *Object) Verify(ctx context.Context, client storage.ClientID) ([]uint64, error) {
	var bad []uint64

	err := o.eachStripe(ctx, client, func(stripe uint64, shards [][]byte) error {
		ok, err := o.enc.Verify(shards)
		if err != nil {
			return fmt.Errorf("(fec) failed to verify stripe %d: %w", stripe, err)
		}

		if !ok {
			slog.Warn("Parity mismatch.", "partition", o.inner.PartitionID(), "stripe", stripe)
			bad = append(bad, stripe)
		}

		return nil
	})

	return bad, err
}

// Reconstruct rebuilds the given shards of a stripe from the others and
// writes them back. Shards are numbered data first, then parity.
func (o *Object) Reconstruct(ctx context.Context, client storage.ClientID, stripe uint64, lost []int) error {
	l := o.layout

	if stripe >= l.Stripes {
		return fmt.Errorf("(fec) %w: stripe %d of %d", storage.ErrOutOfRange, stripe, l.Stripes)
	}

	data := make([]byte, l.StripeData())
	parity := make([]byte, l.StripeParity())

	if err := o.readSync(ctx, client, stripe*l.StripeData(), data); err != nil {
		return err
	}
	if err := o.readSync(ctx, client, l.ParityOffset(stripe), parity); err != nil {
		return err
	}

	shards := o.shards(data, parity)
	for _, i := range lost {
		if i < 0 || i >= len(shards) {
			return fmt.Errorf("(fec) %w: shard %d of %d", storage.ErrOutOfRange, i, len(shards))
		}
		shards[i] = nil
	}

	if err := o.enc.Reconstruct(shards); err != nil {
		return fmt.Errorf("(fec) failed to reconstruct stripe %d: %w", stripe, err)
	}

	for i := range uint64(l.DataShards) {
		copy(data[i*l.ShardSize:], shards[i])
	}
	for i := range uint64(l.ParityShards) {
		copy(parity[i*l.ShardSize:], shards[uint64(l.DataShards)+i])
	}

	if err := o.writeSync(ctx, client, stripe*l.StripeData(), data); err != nil {
		return err
	}

	return o.writeSync(ctx, client, l.ParityOffset(stripe), parity)
}

func (o *Object) eachStripe(ctx context.Context, client storage.ClientID, fn func(stripe uint64, shards [][]byte) error) error {
	l := o.layout
	data := make([]byte, l.StripeData())
	parity := make([]byte, l.StripeParity())

	for stripe := range l.Stripes {
		if err := o.readSync(ctx, client, stripe*l.StripeData(), data); err != nil {
			return err
		}
		if err := o.readSync(ctx, client, l.ParityOffset(stripe), parity); err != nil {
			return err
		}

		if err := fn(stripe, o.shards(data, parity)); err != nil {
			return err
		}
	}

	return nil
}

func (o *Object) readSync(ctx context.Context, client storage.ClientID, offset uint64, buf []byte) error {
	return o.transferSync(ctx, buf, func(done storage.Completion) error {
		return o.inner.Read(client, offset, buf, nil, done)
	})
}

func (o *Object) writeSync(ctx context.Context, client storage.ClientID, offset uint64, buf []byte) error {
	return o.transferSync(ctx, buf, func(done storage.Completion) error {
		return o.inner.Write(client, offset, buf, nil, done)
	})
}

// transferSync issues a request and waits for its completion. A request
// is never abandoned, the context is only checked before it is issued.
func (o *Object) transferSync(ctx context.Context, buf []byte, start func(storage.Completion) error) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck
	}

	ch := make(chan storage.Result, 1)
	if err := start(func(res storage.Result) { ch <- res }); err != nil {
		return err
	}

	res := <-ch
	if res.Err != nil {
		return res.Err
	}

	if res.Count != uint64(len(buf)) {
		return fmt.Errorf("(fec) %w: short transfer of %d/%d bytes", storage.ErrProviderFailure, res.Count, len(buf))
	}

	return nil
}

func (o *Object) checkRange(start, length uint64) error {
	if size := o.Size(); start > size || length > size-start {
		return fmt.Errorf("(fec) %w: [%d, +%d) exceeds size %d", storage.ErrOutOfRange, start, length, size)
	}

	return nil
}

// stripeSpan returns the first stripe and the stripe past the last one
// touched by a range.
func (o *Object) stripeSpan(offset, length uint64) (uint64, uint64) {
	sd := o.layout.StripeData()

	return offset / sd, (offset + length + sd - 1) / sd
}

// join combines the data and parity completions of a write.
type join struct {
	sync.Mutex
	pending int
	count   uint64
	errs    []error
	done    storage.Completion
}

func (j *join) data(res storage.Result) {
	j.complete(res, true)
}

func (j *join) parity(res storage.Result) {
	j.complete(res, false)
}

func (j *join) complete(res storage.Result, data bool) {
	j.Lock()

	if data {
		j.count = res.Count
	}
	if res.Err != nil {
		j.errs = append(j.errs, res.Err)
	}

	j.pending--
	last := j.pending == 0

	j.Unlock()

	if !last {
		return
	}

	out := storage.Result{Count: j.count}
	if len(j.errs) == 1 {
		out.Err = j.errs[0]
	} else if len(j.errs) > 1 {
		out.Err = errors.Join(j.errs...)
	}

	go j.done(out)
}

var _ storage.Object = (*Object)(nil)
