package resilience

import "time"

// window is a sliding log of the most recent admission times.
// It holds at most limit stamps; a new admission is allowed once the oldest
// stamp is at least span old, so no trailing span ever contains more than
// limit admissions. Not safe for concurrent use; the gate guards it.
type window struct {
	span  time.Duration
	limit int
	log   []time.Time
	head  int // index of the oldest stamp
	n     int
}

func newWindow(span time.Duration, limit int) *window {
	if span <= 0 {
		return nil
	}
	return &window{span: span, limit: limit, log: make([]time.Time, limit)}
}

// delay reports how long an admission at now must wait. Zero means admit.
func (w *window) delay(now time.Time) time.Duration {
	if w == nil || w.n < w.limit {
		return 0
	}
	if d := w.log[w.head].Add(w.span).Sub(now); d > 0 {
		return d
	}
	return 0
}

// record logs an admission at now, dropping the oldest stamp when full.
func (w *window) record(now time.Time) {
	if w == nil {
		return
	}
	if w.n < w.limit {
		w.log[(w.head+w.n)%w.limit] = now
		w.n++
		return
	}
	w.log[w.head] = now
	w.head = (w.head + 1) % w.limit
}

// used counts admissions inside the trailing span ending at now.
func (w *window) used(now time.Time) int {
	if w == nil {
		return 0
	}
	count := 0
	for i := range w.n {
		if now.Sub(w.log[(w.head+i)%w.limit]) < w.span {
			count++
		}
	}
	return count
}
