package domain

import "fmt"

// Result is the outcome code carried by every Reply. The set matches the
// memcache result codes used by the transport and codec layers.
type Result int

const (
	ResultUnknown Result = iota
	ResultFound
	ResultNotFound
	ResultStored
	ResultNotStored
	ResultExists
	ResultDeleted
	ResultTouched
	ResultOK
	ResultTimeout
	ResultConnectTimeout
	ResultConnectError
	ResultTko
	ResultBusy
	ResultTryAgain
	ResultRemoteError
	ResultLocalError
	ResultBadKey
	ResultAborted
)

var resultNames = map[Result]string{
	ResultUnknown:        "unknown",
	ResultFound:          "found",
	ResultNotFound:       "notfound",
	ResultStored:         "stored",
	ResultNotStored:      "notstored",
	ResultExists:         "exists",
	ResultDeleted:        "deleted",
	ResultTouched:        "touched",
	ResultOK:             "ok",
	ResultTimeout:        "timeout",
	ResultConnectTimeout: "connect_timeout",
	ResultConnectError:   "connect_error",
	ResultTko:            "tko",
	ResultBusy:           "busy",
	ResultTryAgain:       "try_again",
	ResultRemoteError:    "remote_error",
	ResultLocalError:     "local_error",
	ResultBadKey:         "bad_key",
	ResultAborted:        "aborted",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// FailureClass partitions results into the transient classes a failover
// policy can act on. Everything else, success included, is FailureOther.
type FailureClass int

const (
	FailureOther FailureClass = iota
	FailureDataTimeout
	FailureConnectTimeout
	FailureTko
)

func (f FailureClass) String() string {
	switch f {
	case FailureDataTimeout:
		return "data_timeout"
	case FailureConnectTimeout:
		return "connect_timeout"
	case FailureTko:
		return "tko"
	default:
		return "other"
	}
}

// ClassifyFailure maps a result code to its failure class. Unrecognized
// codes are FailureOther.
func ClassifyFailure(r Result) FailureClass {
	switch r {
	case ResultTimeout:
		return FailureDataTimeout
	case ResultConnectTimeout:
		return FailureConnectTimeout
	case ResultTko:
		return FailureTko
	default:
		return FailureOther
	}
}
