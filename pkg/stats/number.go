package stats

// Number is the set of element types the statistics primitives accept.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}
