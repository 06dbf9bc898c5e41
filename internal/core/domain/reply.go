package domain

// Reply is the single answer a route produces for a Request.
type Reply struct {
	Result  Result
	Value   []byte
	Flags   uint64
	Delta   uint64
	Cas     uint64
	Message string
}

func NewReply(result Result) Reply {
	return Reply{Result: result}
}

func NewValueReply(result Result, value []byte) Reply {
	return Reply{Result: result, Value: value}
}

// NewErrorReply builds a failure reply with a human readable message.
func NewErrorReply(result Result, msg string) Reply {
	return Reply{Result: result, Message: msg}
}

// Len returns the payload length.
func (r Reply) Len() int {
	return len(r.Value)
}

// NullReply is the immediate non-success answer for op, used when no
// destination is available to serve it.
func NullReply(op Operation) Reply {
	if op.Class() == ClassUpdate {
		return NewReply(ResultNotStored)
	}
	return NewReply(ResultNotFound)
}
