package client

import (
	"errors"
	"fmt"
)

// Messages shown to the user. The assistant answers in Bengali, so errors are
// surfaced in the same language.
const (
	msgMissingInput     = "অনুগ্রহ করে প্রশ্ন লিখুন অথবা ছবি আপলোড করুন।"
	msgNoPriorQuestion  = "পুনরায় তৈরি করার জন্য কোনও পূর্ববর্তী প্রশ্ন পাওয়া যায়নি।"
	msgNoPriorAnswer    = "সহজ করার জন্য কোনও পূর্ববর্তী উত্তর পাওয়া যায়নি।"
	msgImageUnsupported = "এই সংযোগে ছবি পাঠানো যায় না।"
	msgUnknownAction    = "অজানা অনুরোধ।"
	msgUnknownError     = "একটি অজানা ত্রুটি ঘটেছে।"
	msgConnection       = "সার্ভারের সাথে সংযোগ করতে সমস্যা হচ্ছে। অনুগ্রহ করে আপনার ইন্টারনেট সংযোগ পরীক্ষা করুন।"
	msgBusy             = "অনুগ্রহ করে আগের উত্তরের জন্য অপেক্ষা করুন।"
)

// ValidationError is a precondition failure caught before any network call.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

var (
	ErrMissingInput     = &ValidationError{Reason: "missing input", Message: msgMissingInput}
	ErrNoPriorQuestion  = &ValidationError{Reason: "no prior question", Message: msgNoPriorQuestion}
	ErrNoPriorAnswer    = &ValidationError{Reason: "no prior answer", Message: msgNoPriorAnswer}
	ErrImageUnsupported = &ValidationError{Reason: "image not supported by json encoding", Message: msgImageUnsupported}
	ErrUnknownAction    = &ValidationError{Reason: "unknown action", Message: msgUnknownAction}
)

// ErrBusy is returned when a request is already in flight.
var ErrBusy = errors.New("request already in flight")

// HTTPError means the backend answered with a non-success status, or with a
// success status but no usable answer.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Detail)
}

// TransportError means the round trip could not be completed.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage returns the localized text for an error returned by Submit.
func UserMessage(err error) string {
	var (
		verr *ValidationError
		herr *HTTPError
		terr *TransportError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &herr):
		detail := herr.Detail
		if detail == "" {
			detail = msgUnknownError
		}
		return fmt.Sprintf("ত্রুটি %d: %s", herr.Status, detail)
	case errors.As(err, &terr):
		return msgConnection
	case errors.Is(err, ErrBusy):
		return msgBusy
	default:
		return msgUnknownError
	}
}
