package flexquery

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedXML is wrapped when the document is not well-formed.
	ErrMalformedXML = errors.New("malformed xml")
	// ErrUnexpectedRoot is wrapped when the root element is not FlexQueryResponse.
	ErrUnexpectedRoot = errors.New("unexpected root element")
	// ErrMissingSection is wrapped when a required element is absent.
	ErrMissingSection = errors.New("missing section")
	// ErrMissingAttribute is wrapped when a Trade lacks a required attribute.
	ErrMissingAttribute = errors.New("missing required attribute")
	// ErrMalformedNumber is wrapped when a numeric attribute does not parse.
	ErrMalformedNumber = errors.New("malformed numeric attribute")
)

// ParseError reports a structurally invalid report. Path is the slash
// separated element path (1-based indexes for repeated elements) and Attr
// the offending attribute, when there is one.
type ParseError struct {
	Path string
	Attr string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Attr != "" {
		return fmt.Sprintf("flexquery: %s@%s: %v", e.Path, e.Attr, e.Err)
	}
	return fmt.Sprintf("flexquery: %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CodeStatementInProgress is returned by the web service while a statement
// is still being generated; callers should retry after a short delay.
const CodeStatementInProgress = 1019

// ServiceError is an error envelope returned by the Flex Web Service.
type ServiceError struct {
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("flex web service error %d: %s", e.Code, e.Message)
}

// Retryable reports whether the request may succeed if repeated later.
func (e *ServiceError) Retryable() bool {
	return e.Code == CodeStatementInProgress
}
