package array

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestPushAndLen(t *testing.T) {
	c := qt.New(t)
	a := New[int](3)
	c.Assert(a.Len(), qt.Equals, 0)
	c.Assert(a.Cap(), qt.Equals, 3)
	c.Assert(a.IsEmpty(), qt.IsTrue)

	// a zero value is still an occupied slot
	c.Assert(a.Push(0), qt.IsNil)
	c.Assert(a.Push(7), qt.IsNil)
	c.Assert(a.Len(), qt.Equals, 2)
	c.Assert(a.Values(), qt.DeepEquals, []int{0, 7})
	c.Assert(a.Padded(), qt.DeepEquals, []int{0, 7, 0})

	c.Assert(a.Push(9), qt.IsNil)
	c.Assert(a.Push(10), qt.ErrorIs, ErrFull)
	c.Assert(a.Len(), qt.Equals, 3)
}

func TestPop(t *testing.T) {
	c := qt.New(t)
	a, err := FromValues(4, 1, 2, 3)
	c.Assert(err, qt.IsNil)
	v, ok := a.Pop()
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, 3)
	c.Assert(a.Values(), qt.DeepEquals, []int{1, 2})

	empty := New[int](1)
	_, ok = empty.Pop()
	c.Assert(ok, qt.IsFalse)
}

func TestClearAndCompact(t *testing.T) {
	c := qt.New(t)
	a, err := FromValues(6, 1, 2, 3, 4, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(a.Clear(1), qt.IsNil)
	c.Assert(a.Clear(3), qt.IsNil)
	c.Assert(a.Validate(), qt.ErrorIs, ErrNotPadded)
	c.Assert(a.Len(), qt.Equals, 1)

	a.Compact()
	c.Assert(a.Validate(), qt.IsNil)
	c.Assert(a.Values(), qt.DeepEquals, []int{1, 3, 5})
	c.Assert(a.Clear(6), qt.ErrorIs, ErrOutOfRange)
}

func TestFromSlotsValidate(t *testing.T) {
	c := qt.New(t)
	a := FromSlots([]Slot[int]{{Value: 1, Occupied: true}, {}, {Value: 2, Occupied: true}})
	c.Assert(a.Validate(), qt.ErrorIs, ErrNotPadded)

	b := FromSlots([]Slot[int]{{Value: 1, Occupied: true}, {}, {}})
	c.Assert(b.Validate(), qt.IsNil)
	c.Assert(b.Len(), qt.Equals, 1)
}

func TestCloneIsIndependent(t *testing.T) {
	c := qt.New(t)
	a, _ := FromValues(3, 1, 2)
	b := a.Clone()
	c.Assert(b.Push(3), qt.IsNil)
	c.Assert(a.Len(), qt.Equals, 2)
	c.Assert(b.Len(), qt.Equals, 3)
}

func TestExtendAndGet(t *testing.T) {
	c := qt.New(t)
	a, _ := FromValues(4, 1)
	b, _ := FromValues(4, 2, 3)
	c.Assert(a.Extend(b), qt.IsNil)
	c.Assert(a.Values(), qt.DeepEquals, []int{1, 2, 3})

	v, ok := a.Get(2)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, 3)
	_, ok = a.Get(3)
	c.Assert(ok, qt.IsFalse)
	_, ok = a.Get(-1)
	c.Assert(ok, qt.IsFalse)

	full, _ := FromValues(2, 1)
	c.Assert(full.Extend(b), qt.ErrorIs, ErrFull)
}
