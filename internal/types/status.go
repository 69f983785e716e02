package types

import (
	"errors"
	"fmt"
)

// Status is the closed set of per-item terminal states.
type Status string

const (
	StatusSuccess             Status = "Success"
	StatusDownloadFailed      Status = "Download Failed"
	StatusConversionFailed    Status = "Conversion Failed"
	StatusTranscriptionFailed Status = "Transcription Failed"
	StatusAnalysisFailed      Status = "Analysis Failed"
	StatusSaveFailed          Status = "Save Failed"
	StatusCriticalError       Status = "Critical Error"
)

// Statuses lists every status in reporting order.
func Statuses() []Status {
	return []Status{
		StatusSuccess,
		StatusDownloadFailed,
		StatusConversionFailed,
		StatusTranscriptionFailed,
		StatusAnalysisFailed,
		StatusSaveFailed,
		StatusCriticalError,
	}
}

func (s Status) Valid() bool {
	for _, v := range Statuses() {
		if v == s {
			return true
		}
	}
	return false
}

// Stage is the last pipeline step an item reached.
type Stage string

const (
	StageStarted     Stage = "started"
	StageDownloaded  Stage = "downloaded"
	StageTranscribed Stage = "transcribed"
	StageAttributed  Stage = "attributed"
	StageAnalyzed    Stage = "analyzed"
	StageSaved       Stage = "saved"
)

// StageError binds a stage failure to the status it produces.
type StageError struct {
	Status Status
	Err    error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return string(e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Status, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Fail wraps err as a StageError with the given status. A nil err yields nil.
func Fail(status Status, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Status: status, Err: err}
}

// StatusOf returns the status carried by err, or StatusCriticalError when
// err is not a StageError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusCriticalError
}
