package recordstore

import (
	"errors"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator hands out identities for readings and invoices created after load.
type IDGenerator interface {
	NextReadingID() int64
	NextInvoiceID() int64
}

// Sequence is a monotonic int64 counter.
type Sequence struct {
	last atomic.Int64
}

// Next returns the next value.
func (s *Sequence) Next() int64 { return s.last.Add(1) }

// Observe moves the counter past id so Next never returns it.
func (s *Sequence) Observe(id int64) {
	for {
		cur := s.last.Load()
		if id <= cur || s.last.CompareAndSwap(cur, id) {
			return
		}
	}
}

// SequenceIDs issues ids from two monotonic counters seeded past every id
// seen during load.
type SequenceIDs struct {
	readings Sequence
	invoices Sequence
}

// NewSequenceIDs constructs counters starting at 1.
func NewSequenceIDs() *SequenceIDs { return &SequenceIDs{} }

func (g *SequenceIDs) NextReadingID() int64 { return g.readings.Next() }

func (g *SequenceIDs) NextInvoiceID() int64 { return g.invoices.Next() }

// ObserveReadingID skips past a loaded reading id.
func (g *SequenceIDs) ObserveReadingID(id int64) { g.readings.Observe(id) }

// ObserveInvoiceID skips past a persisted invoice id.
func (g *SequenceIDs) ObserveInvoiceID(id int64) { g.invoices.Observe(id) }

// SnowflakeIDs issues time-ordered ids unique across processes sharing a
// database, one node id per process.
type SnowflakeIDs struct {
	node *snowflake.Node
}

// NewSnowflakeIDs constructs a generator for node (0-1023).
func NewSnowflakeIDs(node int64) (*SnowflakeIDs, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &SnowflakeIDs{node: n}, nil
}

func (g *SnowflakeIDs) NextReadingID() int64 { return g.next() }

func (g *SnowflakeIDs) NextInvoiceID() int64 { return g.next() }

func (g *SnowflakeIDs) next() int64 {
	if g == nil || g.node == nil {
		panic(errors.New("recordstore: nil snowflake node"))
	}
	return g.node.Generate().Int64()
}
