// Package bytesview provides the byte-region abstraction used for keys and
// value chunks as they move through the write path. A View lets a sub-range
// of a larger buffer be handed to a downstream collaborator without copying.
package bytesview

import "fmt"

// View is a contiguous byte region with an adjustable logical start offset.
// The zero value is an empty view.
//
// A View is either a simple, non-owning window into another region's
// backing array (as built by Window), or it owns a backing array that was
// handed over to it with New. Neither constructor copies. Go's garbage
// collector retires the ownership bookkeeping the original design used
// reference counting for; see DESIGN.md.
type View struct {
	data   []byte
	offset int
}

// New wraps buf as a View starting at offset 0, without copying it. The
// View owns buf only if the caller hands buf over; a caller that keeps
// using buf gets a non-owning view of it.
func New(buf []byte) *View {
	return &View{data: buf}
}

// Window returns a non-owning View into buf[start:start+size]. The caller
// must keep buf alive and unmodified for the life of the returned View.
func Window(buf []byte, start, size int) *View {
	return &View{data: buf[start : start+size]}
}

// Data returns the visible window: the backing bytes from the current
// offset to the end of the region.
func (v *View) Data() []byte {
	if v == nil {
		return nil
	}
	return v.data[v.offset:]
}

// Size returns len(v.Data()).
func (v *View) Size() int {
	if v == nil {
		return 0
	}
	return len(v.data) - v.offset
}

// SetOffset adjusts the visible window to start at n bytes from the
// region's original origin. Size() after SetOffset is the window from n to
// the end of the backing region's logical extent.
func (v *View) SetOffset(n int) {
	v.offset = n
}

// String returns a debug representation; it is not meant for display of
// binary values.
func (v *View) String() string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("View{size=%d, offset=%d}", v.Size(), v.offset)
}
