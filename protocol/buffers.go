package protocol

// FifoBuffer is a circular byte buffer for serial I/O. One slot is kept
// free to tell full from empty.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int

	dropped uint32
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity-1 bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// WriteByte appends b, dropping it when the buffer is full
func (f *FifoBuffer) WriteByte(b byte) error {
	next := (f.write + 1) % f.size
	if next == f.read {
		f.dropped++
		return nil
	}
	f.buf[f.write] = b
	f.write = next
	return nil
}

// Write appends as much of data as fits and returns the count written
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		if f.Free() == 0 {
			f.dropped += uint32(len(data) - written)
			break
		}
		f.WriteByte(b)
		written++
	}
	return written
}

// Pop removes and returns the oldest byte
func (f *FifoBuffer) Pop() (byte, bool) {
	if f.read == f.write {
		return 0, false
	}
	b := f.buf[f.read]
	f.read = (f.read + 1) % f.size
	return b, true
}

// Read moves up to len(data) bytes out of the buffer
func (f *FifoBuffer) Read(data []byte) int {
	n := 0
	for n < len(data) {
		b, ok := f.Pop()
		if !ok {
			break
		}
		data[n] = b
		n++
	}
	return n
}

// Available returns the number of buffered bytes
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes that can still be written
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Dropped returns how many bytes were discarded on a full buffer
func (f *FifoBuffer) Dropped() uint32 {
	return f.dropped
}

// IsEmpty returns true if nothing is buffered
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
	f.dropped = 0
}
