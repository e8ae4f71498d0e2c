package relay

import (
	"errors"
	"fmt"

	"github.com/joshsymonds/mailrelay/internal/mailbox"
)

var (
	// ErrConfiguration marks a missing or unusable webhook URL. Runs fail
	// with it before touching the mailbox.
	ErrConfiguration = errors.New("configuration error")

	// ErrRunInProgress is returned when Run is called while another run of
	// the same Service has not finished.
	ErrRunInProgress = errors.New("run already in progress")
)

// DeliveryError halts a run: the endpoint answered non-2xx or could not be
// reached. Status is zero for transport failures.
type DeliveryError struct {
	MessageID mailbox.MessageID
	Status    int
	Body      string
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("deliver %s: status %d: %s", e.MessageID, e.Status, e.Body)
	}
	return fmt.Sprintf("deliver %s: %v", e.MessageID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// PersistenceError means the property store could not be read or written.
// Without it no-duplicate and no-loss cannot be guaranteed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
