package tracker

// Reason classifies why a store operation failed, or why it ran in a
// degraded mode. The store never reports domain failures as errors.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonNotFound    Reason = "not_found"
	ReasonNotPending  Reason = "not_pending"
	ReasonNoSession   Reason = "no_session"
	ReasonDuplicateID Reason = "duplicate_id"
)

// Outcome is the result of a mutating store operation. OK reports whether the
// operation's primary effect happened; Reason is set on failure, and on
// Create it can flag the no-session degraded path even when OK is true.
type Outcome struct {
	OK     bool
	Reason Reason
}

func succeeded() Outcome {
	return Outcome{OK: true}
}

func failed(reason Reason) Outcome {
	return Outcome{Reason: reason}
}
