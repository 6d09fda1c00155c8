package speech

import "fmt"

// FetchError reports a failed attachment download. StatusCode is zero for
// network-level failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("speech: fetch: status %d", e.StatusCode)
	}
	return fmt.Sprintf("speech: fetch: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TranscodeError reports a failed audio normalization. Output holds the
// transcoder's diagnostic output, if any.
type TranscodeError struct {
	Output string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("speech: transcode: %v: %s", e.Err, e.Output)
	}
	return fmt.Sprintf("speech: transcode: %v", e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// TranscriptionError reports that no transcription backend produced text.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("speech: transcribe: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
