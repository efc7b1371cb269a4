package tempo

// MaxWindow is the largest supported rolling window.
const MaxWindow = 16

// window is a fixed-capacity ring of inter-step intervals in milliseconds.
// Pushing into a full window evicts the oldest interval.
type window struct {
	buf   [MaxWindow]int64
	size  int
	head  int // next write position
	count int
	sum   int64
}

func newWindow(size int) window {
	if size < 1 {
		size = 1
	}
	if size > MaxWindow {
		size = MaxWindow
	}
	return window{size: size}
}

func (w *window) push(v int64) {
	if w.count == w.size {
		w.sum -= w.buf[w.head]
	} else {
		w.count++
	}
	w.buf[w.head] = v
	w.sum += v
	w.head = (w.head + 1) % w.size
}

func (w *window) mean() float64 {
	if w.count == 0 {
		return 0
	}
	return float64(w.sum) / float64(w.count)
}

func (w *window) len() int { return w.count }

func (w *window) clear() {
	w.head = 0
	w.count = 0
	w.sum = 0
}
