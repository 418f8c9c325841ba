package factdiary

// Fact is the engine's unit of write: an atomic assertion that some
// object has some value under some ring (attribute dimension). Object
// and Ring are the two hashable keys the two index orientations are
// built from.
//
// The broader fact-modeling vocabulary (sayers, points, full object/arrow
// types) is out of scope here: callers supply whatever canonical byte
// encoding their own vocabulary produces for Object and Ring, and this
// package treats them as opaque hashable keys.
type Fact struct {
	Object []byte
	Ring   []byte
	Value  Value
}
