package backtest

// pendingQueue tracks signals awaiting an entry candle, in admission
// order. Admission order matters: the engine advances and enters
// pending signals deterministically, and the same-day capital split
// follows that order.
type pendingQueue struct {
	order []*PendingSignal
	byKey map[string]*PendingSignal
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{byKey: make(map[string]*PendingSignal)}
}

// Add admits a signal. No-op when the instrument is already pending.
func (q *pendingQueue) Add(code, name, signalDate string) {
	if _, ok := q.byKey[code]; ok {
		return
	}
	sig := &PendingSignal{Code: code, Name: name, SignalDate: signalDate}
	q.order = append(q.order, sig)
	q.byKey[code] = sig
}

// Has reports whether the instrument is pending.
func (q *pendingQueue) Has(code string) bool {
	_, ok := q.byKey[code]
	return ok
}

// Remove drops the instrument from the queue. No-op when absent.
func (q *pendingQueue) Remove(code string) {
	if _, ok := q.byKey[code]; !ok {
		return
	}
	delete(q.byKey, code)
	for i, sig := range q.order {
		if sig.Code == code {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// All returns the pending signals in admission order. The returned
// slice is a snapshot; the signals themselves are shared and mutable.
func (q *pendingQueue) All() []*PendingSignal {
	out := make([]*PendingSignal, len(q.order))
	copy(out, q.order)
	return out
}

// Len returns the number of pending signals.
func (q *pendingQueue) Len() int { return len(q.order) }
