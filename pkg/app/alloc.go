package app

// MaxAllocation is the largest buffer Allocate hands out.
const MaxAllocation = 1 << 24

// Allocate returns a zeroed buffer of count elements of size bytes. It
// returns nil when either argument is negative or the product exceeds
// MaxAllocation.
func Allocate(count, size int) []byte {
	if count < 0 || size < 0 {
		return nil
	}
	if size != 0 && count > MaxAllocation/size {
		return nil
	}
	return make([]byte, count*size)
}

// Release returns a buffer obtained from Allocate.
func Release([]byte) {}
