package kafka

import "errors"

// TerminalError marks a handler failure that will never succeed on redelivery.
// The consumer acknowledges the message instead of cycling it forever; when a
// dead-letter topic is configured the raw record is routed there first.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string {
	return "terminal: " + e.Err.Error()
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Terminal wraps err so the consumer treats it as non-retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
