package enums

// DeadLetterReason records why the notifier gave up on an outbox event.
type DeadLetterReason string

const (
	// DeadLetterMaxAttempts: every retry failed.
	DeadLetterMaxAttempts DeadLetterReason = "max_attempts"
	// DeadLetterNonRetryable: the handler said retrying cannot help.
	DeadLetterNonRetryable DeadLetterReason = "non_retryable"
	// DeadLetterUnresolvable: the row could not be decoded at all.
	DeadLetterUnresolvable DeadLetterReason = "unresolvable"
)

func (r DeadLetterReason) IsValid() bool {
	switch r {
	case DeadLetterMaxAttempts, DeadLetterNonRetryable, DeadLetterUnresolvable:
		return true
	}
	return false
}
