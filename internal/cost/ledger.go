package cost

import "go.uber.org/zap"

// Ledger accumulates the monetary cost of every model call made for one
// company. It is not safe for concurrent use; the pipeline is sequential.
type Ledger struct {
	calc   *Calculator
	total  float64
	warned map[string]bool
}

// NewLedger creates an empty ledger priced by calc.
func NewLedger(calc *Calculator) *Ledger {
	return &Ledger{calc: calc, warned: make(map[string]bool)}
}

// Add charges one model call. Retried and discarded calls must be added too.
func (l *Ledger) Add(inputTokens, outputTokens int64, model string) float64 {
	if !l.calc.Known(model) && !l.warned[model] {
		l.warned[model] = true
		zap.L().Warn("cost: no rate configured for model, charging 0", zap.String("model", model))
	}
	c := l.calc.Tokens(model, inputTokens, outputTokens)
	l.total += c
	return c
}

// Total returns the running total in USD.
func (l *Ledger) Total() float64 {
	return l.total
}

// Reset zeroes the running total.
func (l *Ledger) Reset() {
	l.total = 0
}
