package mailbox

import "fmt"

// TransportError reports a failed relay operation: the relay was
// unreachable, returned a non-success HTTP status, or reported failure in
// its body. Transport errors are never fatal to the caller's loop; the poll
// cycle logs them and retries the queue on its next pass.
type TransportError struct {
	Op     string // post, fetch, delete
	Status int    // HTTP status, zero when the request never completed
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("mailbox %s failed: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("mailbox %s failed: HTTP %d: %s", e.Op, e.Status, e.Reason)
	default:
		return fmt.Sprintf("mailbox %s failed: %s", e.Op, e.Reason)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
