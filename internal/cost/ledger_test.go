package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedger_ResetThenTotalIsZero(t *testing.T) {
	t.Parallel()
	l := NewLedger(NewCalculator(testRates()))

	l.Add(500000, 1000, "haiku")
	assert.Positive(t, l.Total())

	l.Reset()
	assert.Zero(t, l.Total())
}

func TestLedger_AddIsCommutative(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	a := NewLedger(calc)
	a.Add(1000000, 0, "haiku")
	a.Add(0, 100000, "sonnet")

	b := NewLedger(calc)
	b.Add(0, 100000, "sonnet")
	b.Add(1000000, 0, "haiku")

	assert.InDelta(t, a.Total(), b.Total(), 1e-12)
	assert.InDelta(t, 0.80+1.50, a.Total(), 1e-9)
}

func TestLedger_AddReturnsCallCost(t *testing.T) {
	t.Parallel()
	l := NewLedger(NewCalculator(testRates()))

	c := l.Add(1000000, 100000, "sonnet")
	assert.InDelta(t, 4.50, c, 1e-9)
	assert.InDelta(t, 4.50, l.Total(), 1e-9)
}

func TestLedger_UnknownModelChargesZero(t *testing.T) {
	t.Parallel()
	l := NewLedger(NewCalculator(testRates()))

	assert.Zero(t, l.Add(1000000, 1000000, "mystery"))
	assert.Zero(t, l.Add(1000000, 1000000, "mystery"))
	assert.Zero(t, l.Total())
}
