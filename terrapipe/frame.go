package terrapipe

import "sync"

// DataGroup is an ordered list of binary-safe fields, the unit of structure
// within a Terrapipe payload. In a batch response (MGET) a zero-length
// DataGroup (no fields) represents an absent/nil result for one key,
// distinguishing it from a present-but-empty value (a one-field group whose
// field has length zero).
type DataGroup [][]byte

// Frame is a fully decoded Terrapipe message: a request from a client or a
// response from the server.
type Frame struct {
	Kind   Kind
	Groups []DataGroup
}

// Verb returns the action verb of a request frame: the first field of its
// first DataGroup. Returns "" if the frame has no groups or the first
// group is empty.
func (f *Frame) Verb() string {
	if len(f.Groups) == 0 || len(f.Groups[0]) == 0 {
		return ""
	}
	return string(f.Groups[0][0])
}

// Args returns the fields of a request frame's first DataGroup after the
// verb.
func (f *Frame) Args() DataGroup {
	if len(f.Groups) == 0 || len(f.Groups[0]) < 2 {
		return nil
	}
	return f.Groups[0][1:]
}

// Code returns a response frame's status code: the first field of its
// first DataGroup, decoded back from its ASCII digit form.
func (f *Frame) Code() (ResponseCode, bool) {
	if len(f.Groups) == 0 || len(f.Groups[0]) == 0 || len(f.Groups[0][0]) != 1 {
		return 0, false
	}
	b := f.Groups[0][0][0]
	if b < '0' || b > '9' {
		return 0, false
	}
	return ResponseCode(b - '0'), true
}

// reset clears a Frame for reuse via framePool. Groups is truncated to
// length zero and keeps its backing array for reuse; decode always
// allocates fresh field slices from the payload buffer it reads, so there
// is nothing unsafe to retain here.
func (f *Frame) reset() {
	f.Kind = 0
	f.Groups = f.Groups[:0]
}

var framePool = sync.Pool{
	New: func() any { return &Frame{} },
}

// getFrame acquires a Frame from the pool. Callers that hand a decoded
// Frame off to another goroutine (e.g. a dispatcher) should not call
// PutFrame on it until they are done with it.
func getFrame() *Frame {
	return framePool.Get().(*Frame)
}

// PutFrame returns a Frame to the pool after resetting it. Safe to call on
// both request and response frames once fully written/consumed.
func PutFrame(f *Frame) {
	if f == nil {
		return
	}
	f.reset()
	framePool.Put(f)
}

// NewResponse builds a response Frame for the given code and result
// groups. Most dispatcher responses have zero or one result group beyond
// the code; MGET-style batch responses append one group per key.
func NewResponse(code ResponseCode, results ...DataGroup) *Frame {
	groups := make([]DataGroup, 0, 1+len(results))
	groups = append(groups, DataGroup{{code.Byte()}})
	groups = append(groups, results...)
	return &Frame{Kind: KindResponse, Groups: groups}
}

// NewRequest builds a request Frame for the given verb and arguments, all
// carried in a single DataGroup (every action verb currently defined uses
// exactly one).
func NewRequest(verb string, args ...[]byte) *Frame {
	fields := make(DataGroup, 0, 1+len(args))
	fields = append(fields, []byte(verb))
	fields = append(fields, args...)
	return &Frame{Kind: KindRequest, Groups: []DataGroup{fields}}
}
