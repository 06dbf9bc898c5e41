package domain

// Request is a single memcache request. It is passed by value and never
// mutated once built; derived requests are copies.
type Request struct {
	Key     string
	Value   []byte
	Exptime uint32
	Flags   uint64
	Delta   uint64
	Cas     uint64
}

// NewRequest returns a request for key with no payload.
func NewRequest(key string) Request {
	return Request{Key: key}
}

// NewSetRequest returns a request carrying value for update operations.
func NewSetRequest(key string, value []byte, exptime uint32) Request {
	return Request{Key: key, Value: value, Exptime: exptime}
}

// WithExptime returns a copy of r with only the expiration replaced.
func (r Request) WithExptime(exptime uint32) Request {
	r.Exptime = exptime
	return r
}
