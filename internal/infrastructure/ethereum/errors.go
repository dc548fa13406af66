package ethereum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrNotContract is returned when the target address has no code
	ErrNotContract = errors.New("address is not a contract")

	// ErrCallFailed is returned when a contract does not implement the called function
	ErrCallFailed = errors.New("contract call failed")

	// ErrNotFound is returned when the node does not know the block or receipt yet
	ErrNotFound = errors.New("not found")
)

// TransientError wraps failures that should be retried on the next poll cycle
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsNotToken reports whether err means the address does not look like a token
func IsNotToken(err error) bool {
	return errors.Is(err, ErrNotContract) || errors.Is(err, ErrCallFailed)
}

// IsTransient reports whether err is a retryable chain failure
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// revert markers returned by common node implementations
var revertMarkers = []string{
	"execution reverted",
	"revert",
	"invalid opcode",
	"invalid jump",
	"out of gas",
	"stack underflow",
}

// classifyCallError maps an eth_call failure onto the error taxonomy
func classifyCallError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Op: op, Err: err}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return fmt.Errorf("%s: %w: %v", op, ErrCallFailed, err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range revertMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%s: %w: %v", op, ErrCallFailed, err)
		}
	}

	return &TransientError{Op: op, Err: err}
}
