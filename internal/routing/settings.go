package routing

import "github.com/vietddude/mcroute/internal/core/domain"

// OperationSettings says, for one failure class, which operation classes
// may fail over. Arithmetic has no entry: re-applying a delta on another
// backend would apply it twice.
type OperationSettings struct {
	Gets    bool `yaml:"gets"    json:"gets"`
	Updates bool `yaml:"updates" json:"updates"`
	Deletes bool `yaml:"deletes" json:"deletes"`
}

func (s OperationSettings) allows(class domain.OpClass) bool {
	switch class {
	case domain.ClassRead:
		return s.Gets
	case domain.ClassUpdate:
		return s.Updates
	case domain.ClassDelete:
		return s.Deletes
	default:
		return false
	}
}

// FailoverSettings is the failover policy matrix, one row per retriable
// failure class.
type FailoverSettings struct {
	DataTimeout    OperationSettings `yaml:"data_timeout"    json:"data_timeout"`
	ConnectTimeout OperationSettings `yaml:"connect_timeout" json:"connect_timeout"`
	Tko            OperationSettings `yaml:"tko"             json:"tko"`
}

// DefaultFailoverSettings fails over only reads that hit a data timeout.
// Connect timeouts and TKO point at an unavailable pool, where retrying adds
// load without helping.
func DefaultFailoverSettings() FailoverSettings {
	return FailoverSettings{
		DataTimeout: OperationSettings{Gets: true},
	}
}

func (s FailoverSettings) row(fc domain.FailureClass) (OperationSettings, bool) {
	switch fc {
	case domain.FailureDataTimeout:
		return s.DataTimeout, true
	case domain.FailureConnectTimeout:
		return s.ConnectTimeout, true
	case domain.FailureTko:
		return s.Tko, true
	default:
		return OperationSettings{}, false
	}
}

// Allows reports whether a reply of failure class fc for op may fail over.
// Arithmetic and unclassified operations never do, whatever the settings.
func (s FailoverSettings) Allows(fc domain.FailureClass, op domain.Operation) bool {
	class := op.Class()
	if class == domain.ClassArithmetic || class == domain.ClassOther {
		return false
	}
	row, ok := s.row(fc)
	if !ok {
		return false
	}
	return row.allows(class)
}

// AllowsAny reports whether some failure class may fail over op.
func (s FailoverSettings) AllowsAny(op domain.Operation) bool {
	for _, fc := range []domain.FailureClass{
		domain.FailureDataTimeout,
		domain.FailureConnectTimeout,
		domain.FailureTko,
	} {
		if s.Allows(fc, op) {
			return true
		}
	}
	return false
}
