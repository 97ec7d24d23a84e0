package model

// Result is the terminal classification of a job run as seen by the ledger.
type Result string

const (
	Success Result = "success"
	Failure Result = "failure"
)

// Valid reports whether r is one of the known results.
func (r Result) Valid() bool {
	return r == Success || r == Failure
}

// Outcome is one ledger entry. Sequence is assigned by the ledger on append.
type Outcome struct {
	Container string `json:"container"`
	Result    Result `json:"result"`
	Msg       string `json:"msg"`
	Sequence  uint64 `json:"sequence"`
}

// Succeeded builds a success outcome for the given container name.
func Succeeded(container string) Outcome {
	return Outcome{Container: container, Result: Success}
}

// Failed builds a failure outcome carrying msg.
func Failed(container, msg string) Outcome {
	return Outcome{Container: container, Result: Failure, Msg: msg}
}
