package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"papertrade/internal/model"
)

// Namespace for SHA1-derived event IDs. IDs must be a pure function of the
// event sequence so that two runs over the same input produce byte-identical
// event streams; uuid.New() would break replay determinism.
var idNamespace = uuid.MustParse("7b1c3c02-44f5-5a8e-9d10-6a2f90c41d37")

// Generator assigns monotonically increasing sequence numbers and
// deterministic IDs to events.
type Generator struct {
	seq int64
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Next builds an event with the next sequence number and a deterministic ID.
func (g *Generator) Next(t Type, instrument model.InstrumentID, now time.Time) Event {
	g.seq++
	return Event{
		ID:         uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("evt-%d", g.seq))).String(),
		Seq:        g.seq,
		Type:       t,
		Instrument: instrument,
		Timestamp:  now,
	}
}

// OrderID derives a deterministic order ID from a desk-scoped counter.
func OrderID(n int64) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("ord-%d", n))).String()
}

// Seq returns the last assigned sequence number.
func (g *Generator) Seq() int64 { return g.seq }

// RestoreSeq sets the sequence counter (used after snapshot restore).
func (g *Generator) RestoreSeq(seq int64) { g.seq = seq }
