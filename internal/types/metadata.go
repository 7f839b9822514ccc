package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/samber/lo"
)

// Processor metadata limits. Invoice metadata is forwarded to the payment
// intent, so it has to fit there too.
const (
	MaxMetadataKeys        = 50
	MaxMetadataKeyLength   = 40
	MaxMetadataValueLength = 500
)

// Metadata is a JSONB column of free-form string pairs
type Metadata map[string]string

// Clone returns an independent copy, nil stays nil
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return lo.Assign(m)
}

func (m Metadata) Validate() error {
	if len(m) > MaxMetadataKeys {
		return ierr.NewError("too many metadata keys").
			WithHintf("Metadata can hold at most %d keys", MaxMetadataKeys).
			WithReportableDetails(map[string]any{"keys": len(m)}).
			Mark(ierr.ErrValidation)
	}
	for k, v := range m {
		if k == "" || len(k) > MaxMetadataKeyLength {
			return ierr.NewError("invalid metadata key").
				WithHintf("Metadata keys must be 1 to %d characters", MaxMetadataKeyLength).
				WithReportableDetails(map[string]any{"key": k}).
				Mark(ierr.ErrValidation)
		}
		if len(v) > MaxMetadataValueLength {
			return ierr.NewError("metadata value too long").
				WithHintf("Metadata values must be at most %d characters", MaxMetadataValueLength).
				WithReportableDetails(map[string]any{"key": k}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported column type %T", value)
	}

	result := make(Metadata)
	err := json.Unmarshal(raw, &result)
	*m = result
	return err
}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
