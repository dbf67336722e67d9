package importer

import (
	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/pkg/errors"
)

// Failure is a terminal import failure. Message is meant for people and is
// returned by Error unchanged; Err keeps the cause for logs.
type Failure struct {
	Step    Step
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// StepName names the step the import failed in.
func (f *Failure) StepName() string {
	return f.Step.String()
}

// newFailure picks the most specific human-readable message available for
// err, falling back to fallback.
func newFailure(step Step, err error, fallback string) *Failure {
	msg := fallback

	var codeErr *errcodes.Error
	var extractionErr *mediafile.ExtractionError
	switch {
	case errors.As(err, &codeErr):
		msg = codeErr.Message
	case errors.As(err, &extractionErr):
		msg = extractionErr.Error()
	}

	return &Failure{Step: step, Message: msg, Err: err}
}

// IsDuplicate reports whether err is an import failure caused by the book
// already being in the catalog.
func IsDuplicate(err error) bool {
	return errcodes.HasCode(err, "duplicate")
}
