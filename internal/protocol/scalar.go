package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// scalarCodec describes one fixed-width scalar on the wire. Every list and
// tuple routine is written once against this shape.
type scalarCodec[T any] struct {
	size int
	put  func([]byte, T)
	get  func([]byte) T
}

var (
	boolCodec = scalarCodec[bool]{
		size: 1,
		put: func(b []byte, v bool) {
			b[0] = 0
			if v {
				b[0] = 1
			}
		},
		get: func(b []byte) bool { return b[0] != 0 },
	}
	byteCodec = scalarCodec[uint8]{
		size: 1,
		put:  func(b []byte, v uint8) { b[0] = v },
		get:  func(b []byte) uint8 { return b[0] },
	}
	wordCodec = scalarCodec[uint16]{
		size: 2,
		put:  binary.BigEndian.PutUint16,
		get:  binary.BigEndian.Uint16,
	}
	intCodec = scalarCodec[int32]{
		size: 4,
		put:  func(b []byte, v int32) { binary.BigEndian.PutUint32(b, uint32(v)) },
		get:  func(b []byte) int32 { return int32(binary.BigEndian.Uint32(b)) },
	}
)

func writeScalar[T any](e *Encoder, c scalarCodec[T], v T) error {
	buf := e.aux[:c.size]
	c.put(buf, v)
	_, err := e.w.Write(buf)
	return err
}

func readScalar[T any](d *Decoder, c scalarCodec[T]) (T, error) {
	buf := d.aux[:c.size]
	if err := d.readFull(buf); err != nil {
		var zero T
		return zero, err
	}
	return c.get(buf), nil
}

func scalarWriter[T any](c scalarCodec[T]) func(*Encoder, T) error {
	return func(e *Encoder, v T) error { return writeScalar(e, c, v) }
}

func scalarReader[T any](c scalarCodec[T]) func(*Decoder) (T, error) {
	return func(d *Decoder) (T, error) { return readScalar(d, c) }
}

// writeList writes an Int element count followed by each element.
func writeList[T any](e *Encoder, items []T, write func(*Encoder, T) error) error {
	if len(items) > math.MaxInt32 {
		return fmt.Errorf("%w: %d elements", ErrListTooLong, len(items))
	}
	if err := writeScalar(e, intCodec, int32(len(items))); err != nil {
		return err
	}
	for _, item := range items {
		if err := write(e, item); err != nil {
			return err
		}
	}
	return nil
}

// readList reads an Int element count, allocates exactly that many elements
// and fills them in order.
func readList[T any](d *Decoder, read func(*Decoder) (T, error)) ([]T, error) {
	n, err := d.readCount("list count")
	if err != nil {
		return nil, err
	}
	items := make([]T, n)
	for i := range items {
		v, err := read(d)
		if err != nil {
			return nil, fmt.Errorf("list element %d/%d: %w", i, n, err)
		}
		items[i] = v
	}
	return items, nil
}

// writeInts writes a fixed run of Ints with no count prefix.
func writeInts(e *Encoder, vals []int32) error {
	for _, v := range vals {
		if err := writeScalar(e, intCodec, v); err != nil {
			return err
		}
	}
	return nil
}

func readInts(d *Decoder, dst []int32) error {
	for i := range dst {
		v, err := readScalar(d, intCodec)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}
