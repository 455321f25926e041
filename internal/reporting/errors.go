package reporting

// ValidationError reports a request parameter that is missing or outside its
// allowed range. The message is safe to return to the client verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func errGameIDRequired() error {
	return &ValidationError{Msg: "Game ID required"}
}
