// Package array implements the fixed-capacity, insertion-ordered sequences
// carried by the kernel and rollup public inputs. Every slot has an explicit
// occupied flag, so a genuinely zero value is never confused with an empty
// slot.
package array

import (
	"errors"
	"fmt"
)

var (
	// ErrFull is returned when pushing into an array with no free slot.
	ErrFull = errors.New("array: capacity exceeded")
	// ErrOutOfRange is returned when accessing a slot beyond the capacity.
	ErrOutOfRange = errors.New("array: index out of range")
	// ErrNotPadded is returned by Validate when an occupied slot follows an
	// empty one.
	ErrNotPadded = errors.New("array: occupied slot after an empty one")
)

// Slot is one position of an Array.
type Slot[T any] struct {
	Value    T
	Occupied bool
}

// Array is a fixed-capacity sequence. Its length is the number of leading
// occupied slots; every slot after the length is empty.
type Array[T any] struct {
	slots []Slot[T]
}

// New returns an empty array able to hold capacity values.
func New[T any](capacity int) Array[T] {
	return Array[T]{slots: make([]Slot[T], capacity)}
}

// FromValues returns an array of the given capacity holding vals in order.
func FromValues[T any](capacity int, vals ...T) (Array[T], error) {
	a := New[T](capacity)
	for _, v := range vals {
		if err := a.Push(v); err != nil {
			return Array[T]{}, err
		}
	}
	return a, nil
}

// FromSlots wraps raw slots, which is how untrusted inputs are received.
// The result is not validated, call Validate before relying on Len.
func FromSlots[T any](slots []Slot[T]) Array[T] {
	s := make([]Slot[T], len(slots))
	copy(s, slots)
	return Array[T]{slots: s}
}

// Cap returns the fixed capacity.
func (a *Array[T]) Cap() int { return len(a.slots) }

// Len returns the count of leading occupied slots.
func (a *Array[T]) Len() int {
	for i, s := range a.slots {
		if !s.Occupied {
			return i
		}
	}
	return len(a.slots)
}

// IsEmpty reports whether no slot is occupied.
func (a *Array[T]) IsEmpty() bool { return a.Len() == 0 }

// Push appends v after the current length.
func (a *Array[T]) Push(v T) error {
	n := a.Len()
	if n == len(a.slots) {
		return fmt.Errorf("%w: %d", ErrFull, len(a.slots))
	}
	a.slots[n] = Slot[T]{Value: v, Occupied: true}
	return nil
}

// Pop removes and returns the last occupied value.
func (a *Array[T]) Pop() (T, bool) {
	var zero T
	n := a.Len()
	if n == 0 {
		return zero, false
	}
	v := a.slots[n-1].Value
	a.slots[n-1] = Slot[T]{}
	return v, true
}

// At returns the slot at index i.
func (a *Array[T]) At(i int) (Slot[T], error) {
	if i < 0 || i >= len(a.slots) {
		return Slot[T]{}, fmt.Errorf("%w: %d (cap %d)", ErrOutOfRange, i, len(a.slots))
	}
	return a.slots[i], nil
}

// Get returns the value at index i and whether the slot is occupied.
func (a *Array[T]) Get(i int) (T, bool) {
	s, err := a.At(i)
	if err != nil {
		return s.Value, false
	}
	return s.Value, s.Occupied
}

// Clear empties the slot at index i, leaving a hole until Compact is called.
func (a *Array[T]) Clear(i int) error {
	if i < 0 || i >= len(a.slots) {
		return fmt.Errorf("%w: %d (cap %d)", ErrOutOfRange, i, len(a.slots))
	}
	a.slots[i] = Slot[T]{}
	return nil
}

// Compact moves every occupied slot to the left preserving relative order.
func (a *Array[T]) Compact() {
	j := 0
	for i := range a.slots {
		if a.slots[i].Occupied {
			a.slots[j] = a.slots[i]
			j++
		}
	}
	for ; j < len(a.slots); j++ {
		a.slots[j] = Slot[T]{}
	}
}

// Values returns the occupied values, in order, up to the length.
func (a *Array[T]) Values() []T {
	n := a.Len()
	vals := make([]T, n)
	for i := 0; i < n; i++ {
		vals[i] = a.slots[i].Value
	}
	return vals
}

// Padded returns every slot value, empty slots as the zero value of T.
func (a *Array[T]) Padded() []T {
	vals := make([]T, len(a.slots))
	for i, s := range a.slots {
		if s.Occupied {
			vals[i] = s.Value
		}
	}
	return vals
}

// Slots returns a copy of the raw slots.
func (a *Array[T]) Slots() []Slot[T] {
	s := make([]Slot[T], len(a.slots))
	copy(s, a.slots)
	return s
}

// Validate checks that no occupied slot follows an empty one.
func (a *Array[T]) Validate() error {
	seenEmpty := false
	for i, s := range a.slots {
		switch {
		case !s.Occupied:
			seenEmpty = true
		case seenEmpty:
			return fmt.Errorf("%w: index %d", ErrNotPadded, i)
		}
	}
	return nil
}

// Clone returns a deep copy of the slots. Values are copied by assignment.
func (a Array[T]) Clone() Array[T] {
	return FromSlots(a.slots)
}

// Extend pushes every value of b, in order, after the current length of a.
func (a *Array[T]) Extend(b Array[T]) error {
	for _, v := range b.Values() {
		if err := a.Push(v); err != nil {
			return err
		}
	}
	return nil
}
