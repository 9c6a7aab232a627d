package indicators

// window is a fixed-size ring of the most recent values.
type window struct {
	buf   []float64
	start int
	n     int
}

func newWindow(size int) *window {
	return &window{buf: make([]float64, size)}
}

// push appends v. When the ring is full the oldest value is evicted and
// returned with ok=true.
func (w *window) push(v float64) (evicted float64, ok bool) {
	size := len(w.buf)
	if w.n < size {
		w.buf[(w.start+w.n)%size] = v
		w.n++
		return 0, false
	}
	evicted = w.buf[w.start]
	w.buf[w.start] = v
	w.start = (w.start + 1) % size
	return evicted, true
}

func (w *window) full() bool { return w.n == len(w.buf) }

func (w *window) len() int { return w.n }

func (w *window) reset() {
	w.start = 0
	w.n = 0
}

func (w *window) max() float64 {
	m := w.buf[w.start]
	for i := 1; i < w.n; i++ {
		if v := w.buf[(w.start+i)%len(w.buf)]; v > m {
			m = v
		}
	}
	return m
}

func (w *window) min() float64 {
	m := w.buf[w.start]
	for i := 1; i < w.n; i++ {
		if v := w.buf[(w.start+i)%len(w.buf)]; v < m {
			m = v
		}
	}
	return m
}
