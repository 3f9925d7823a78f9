package partitioner

import (
	"fmt"

	"github.com/danthegoodman1/joinplanner/keys"
	"github.com/danthegoodman1/joinplanner/utils"
)

type (
	Reason string

	// InvalidProgramError is returned when a custom partitioner cannot be used
	// with the key it is attached to.
	InvalidProgramError struct {
		Reason Reason
		Msg    string
	}
)

const (
	KeyArityUnsupported     Reason = "KeyArityUnsupported"
	PartitionerTypeMismatch Reason = "PartitionerTypeMismatch"
	PartitionerMissing      Reason = "PartitionerMissing"
)

var ErrInvalidProgram = utils.PermError("invalid program")

func (e *InvalidProgramError) Error() string {
	return fmt.Sprintf("%s (%s): %s", ErrInvalidProgram, e.Reason, e.Msg)
}

func (e *InvalidProgramError) Is(target error) bool {
	if target == ErrInvalidProgram {
		return true
	}
	t, ok := target.(*InvalidProgramError)
	return ok && t.Reason == e.Reason && t.Msg == ""
}

func (e *InvalidProgramError) IsPermanent() bool {
	return true
}

// CheckCompatible verifies that p can partition on keyType. Custom partitioners
// are only defined over a single field, and that field must be exactly the
// partitioner's operand type.
func CheckCompatible(p *Partitioner, keyType keys.KeyType) error {
	if p == nil {
		return &InvalidProgramError{Reason: PartitionerMissing, Msg: "partitioner is nil"}
	}
	if len(keyType) != 1 {
		return &InvalidProgramError{
			Reason: KeyArityUnsupported,
			Msg:    fmt.Sprintf("custom partitioner %s needs a single field key, got %d fields %s", p.Name, len(keyType), keyType),
		}
	}
	if !p.OperandType.Equal(keyType[0]) {
		return &InvalidProgramError{
			Reason: PartitionerTypeMismatch,
			Msg:    fmt.Sprintf("custom partitioner %s takes %s but the key type is %s", p.Name, p.OperandType, keyType[0]),
		}
	}
	return nil
}
