package provider

import "fmt"

// Error reports a non-retryable HTTP failure from a provider endpoint. The
// status and a bounded slice of the body ride along for diagnostics.
type Error struct {
	Provider string
	Status   int
	Body     string
}

func (e *Error) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, body)
}

// MalformedResponseError reports a response that arrived but could not be
// shaped into an AnalysisResult.
type MalformedResponseError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
