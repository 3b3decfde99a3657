// Package bits converts payloads to and from MSB-first bit sequences.
//
// A bit sequence is a []byte holding one 0 or 1 per element.
package bits

// FromBytes expands a payload into its bit view, 8 bits per byte, MSB first
func FromBytes(payload []byte) []byte {
	out := make([]byte, 0, len(payload)*8)
	for _, b := range payload {
		for i := 7; i >= 0; i-- {
			out = append(out, (b>>uint(i))&1)
		}
	}
	return out
}

// ToBytes packs a bit sequence into bytes. A trailing group shorter than 8 bits is
// packed left-aligned and reported through partial.
func ToBytes(bitSeq []byte) (payload []byte, partial bool) {
	payload = make([]byte, 0, (len(bitSeq)+7)/8)

	var currentByte byte
	bitIndex := 0
	for _, bit := range bitSeq {
		currentByte |= (bit & 1) << uint(7-bitIndex)
		bitIndex++
		if bitIndex == 8 {
			payload = append(payload, currentByte)
			currentByte = 0
			bitIndex = 0
		}
	}

	if bitIndex > 0 {
		payload = append(payload, currentByte)
		partial = true
	}
	return payload, partial
}

// Reader hands out bits of a sequence in order
type Reader struct {
	seq []byte
	pos int
}

// NewReader returns a reader over a bit sequence
func NewReader(seq []byte) *Reader {
	return &Reader{seq: seq}
}

// Remaining returns the number of unread bits
func (r *Reader) Remaining() int {
	return len(r.seq) - r.pos
}

// Next returns the next bit. ok is false once the sequence is exhausted.
func (r *Reader) Next() (bit byte, ok bool) {
	if r.pos >= len(r.seq) {
		return 0, false
	}
	bit = r.seq[r.pos]
	r.pos++
	return bit, true
}

// ReadUint consumes n bits as an unsigned integer, MSB first.
// ok is false, and nothing is consumed, when fewer than n bits remain.
func (r *Reader) ReadUint(n int) (v uint, ok bool) {
	if n < 0 || r.Remaining() < n {
		return 0, false
	}
	for i := 0; i < n; i++ {
		v = v<<1 | uint(r.seq[r.pos]&1)
		r.pos++
	}
	return v, true
}

// Writer accumulates bits
type Writer struct {
	seq []byte
}

// NewWriter returns a writer with room for capacity bits
func NewWriter(capacity int) *Writer {
	return &Writer{seq: make([]byte, 0, capacity)}
}

// WriteBit appends one bit
func (w *Writer) WriteBit(bit byte) {
	w.seq = append(w.seq, bit&1)
}

// WriteUint appends the low n bits of v, MSB first
func (w *Writer) WriteUint(v uint, n int) {
	for i := n - 1; i >= 0; i-- {
		w.seq = append(w.seq, byte(v>>uint(i))&1)
	}
}

// Len returns the number of bits written
func (w *Writer) Len() int {
	return len(w.seq)
}

// Bits returns the written bit sequence
func (w *Writer) Bits() []byte {
	return w.seq
}
