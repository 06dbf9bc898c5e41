package domain

import (
	"fmt"
	"strings"
)

// Operation identifies a memcache command.
type Operation int

const (
	OpUnknown Operation = iota
	OpGet
	OpGets
	OpMetaget
	OpLeaseGet
	OpSet
	OpAdd
	OpReplace
	OpAppend
	OpPrepend
	OpCas
	OpLeaseSet
	OpDelete
	OpIncr
	OpDecr
	OpTouch
	OpVersion
	OpStats
	OpFlushAll
)

var operationNames = map[Operation]string{
	OpUnknown:  "unknown",
	OpGet:      "get",
	OpGets:     "gets",
	OpMetaget:  "metaget",
	OpLeaseGet: "lease-get",
	OpSet:      "set",
	OpAdd:      "add",
	OpReplace:  "replace",
	OpAppend:   "append",
	OpPrepend:  "prepend",
	OpCas:      "cas",
	OpLeaseSet: "lease-set",
	OpDelete:   "delete",
	OpIncr:     "incr",
	OpDecr:     "decr",
	OpTouch:    "touch",
	OpVersion:  "version",
	OpStats:    "stats",
	OpFlushAll: "flush_all",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

// ParseOperation resolves a command name (case-insensitive) to an Operation.
func ParseOperation(name string) (Operation, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for op, n := range operationNames {
		if op != OpUnknown && n == name {
			return op, nil
		}
	}
	return OpUnknown, fmt.Errorf("unknown operation %q", name)
}

// OpClass groups operations by how they may be retried.
type OpClass int

const (
	ClassOther OpClass = iota
	ClassRead
	ClassUpdate
	ClassDelete
	ClassArithmetic
)

func (c OpClass) String() string {
	switch c {
	case ClassRead:
		return "read"
	case ClassUpdate:
		return "update"
	case ClassDelete:
		return "delete"
	case ClassArithmetic:
		return "arithmetic"
	default:
		return "other"
	}
}

// Class returns the operation class of o.
func (o Operation) Class() OpClass {
	switch o {
	case OpGet, OpGets, OpMetaget, OpLeaseGet:
		return ClassRead
	case OpSet, OpAdd, OpReplace, OpAppend, OpPrepend, OpCas, OpLeaseSet:
		return ClassUpdate
	case OpDelete:
		return ClassDelete
	case OpIncr, OpDecr:
		return ClassArithmetic
	default:
		return ClassOther
	}
}
