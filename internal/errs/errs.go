package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of the provider that produced it.
type Kind string

const (
	KindExtraction Kind = "ExtractionError"
	KindEmbedding  Kind = "EmbeddingError"
	KindVectorDB   Kind = "VectorDBError"
	KindLLM        Kind = "LLMError"
	KindNotFound   Kind = "NotFoundError"
	KindConflict   Kind = "ConflictError"
)

// Error is the single error type surfaced to pipeline and orchestrator callers.
// Provider error shapes stay behind Err.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindConflict}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// ErrNoExtractor is the cause carried by the ExtractionError returned when no
// registered extractor supports an input.
var ErrNoExtractor = errors.New("no extractor found")

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Extraction(op string, err error) *Error { return New(KindExtraction, op, err) }
func Embedding(op string, err error) *Error  { return New(KindEmbedding, op, err) }
func VectorDB(op string, err error) *Error   { return New(KindVectorDB, op, err) }
func LLM(op string, err error) *Error        { return New(KindLLM, op, err) }
func NotFound(op string, err error) *Error   { return New(KindNotFound, op, err) }
func Conflict(op string, err error) *Error   { return New(KindConflict, op, err) }

// NoExtractorFound reports that no extractor accepted the given locator.
func NoExtractorFound(locator string) *Error {
	return Extraction("select extractor", fmt.Errorf("%w for %q", ErrNoExtractor, locator))
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }
func IsConflict(err error) bool { return IsKind(err, KindConflict) }

// Wrap translates err into kind unless it already carries a taxonomy kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return New(kind, op, err)
}
