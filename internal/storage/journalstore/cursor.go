package journalstore

import (
	"context"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/rewind-go/internal/core/codec"
	"github.com/yndnr/rewind-go/internal/core/domain"
)

// Cursor reads a log in sequence order. It implements replay.OffsetSource;
// the offset is the sequence number of the next entry.
//
// Each page is read in its own transaction, so a Cursor sees entries
// appended after it was created.
type Cursor struct {
	s    *Store
	name string
	next uint64
	page []domain.Entry
	done bool
}

// Source returns a cursor over the log starting at sequence fromSeq.
func (s *Store) Source(name string, fromSeq uint64) (*Cursor, error) {
	if err := validLogName(name); err != nil {
		return nil, err
	}
	return &Cursor{s: s, name: name, next: fromSeq}, nil
}

// Next implements replay.Source.
func (c *Cursor) Next(ctx context.Context) (domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.page) == 0 {
		if c.done {
			return nil, io.EOF
		}
		if err := c.fill(); err != nil {
			return nil, err
		}
		if len(c.page) == 0 {
			return nil, io.EOF
		}
	}
	e := c.page[0]
	c.page = c.page[1:]
	c.next++
	return e, nil
}

// Offset implements replay.OffsetSource.
func (c *Cursor) Offset() int64 { return int64(c.next) }

func (c *Cursor) fill() error {
	if c.s.closed.Load() {
		return ErrClosed
	}
	page := make([]domain.Entry, 0, PageSize)
	err := c.s.db.View(func(txn *badger.Txn) error {
		prefix := logPrefix(c.name)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchSize = PageSize
		it := txn.NewIterator(opts)
		defer it.Close()

		want := c.next
		for it.Seek(entryKey(c.name, want)); it.Valid() && len(page) < PageSize; it.Next() {
			_, seq, ok := parseKey(it.Item().Key())
			if !ok {
				continue
			}
			if seq != want {
				return domain.ErrDecode.WithDetailsf("log %s: expected sequence %d, found %d", c.name, want, seq)
			}
			var e domain.Entry
			err := it.Item().Value(func(v []byte) error {
				var derr error
				e, derr = codec.DecodeRecord(v)
				return derr
			})
			if err != nil {
				return err
			}
			page = append(page, e)
			want++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("journalstore: read %s at %d: %w", c.name, c.next, err)
	}
	c.page = page
	c.done = len(page) < PageSize
	return nil
}
