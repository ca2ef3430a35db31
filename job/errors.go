package job

import (
	"errors"
	"fmt"

	"pixbatch/models"
)

var (
	ErrDecode            = errors.New("decode failed")
	ErrUnsupportedFormat = models.ErrUnsupportedFormat
	ErrEncode            = errors.New("encode failed")
	ErrResource          = errors.New("resource limit exceeded")
	ErrCancelled         = errors.New("conversion cancelled")
	ErrAggregation       = errors.New("archive assembly failed")
	ErrTaskFailed        = errors.New("conversion task failed")
	ErrPublish           = errors.New("archive publication failed")
	ErrEmptyJob          = errors.New("job has no items")
)

// Kind classifies a job failure for records and HTTP status mapping.
type Kind string

const (
	KindDecode      Kind = "decode"
	KindUnsupported Kind = "unsupported_format"
	KindEncode      Kind = "encode"
	KindResource    Kind = "resource"
	KindCancelled   Kind = "cancelled"
	KindAggregation Kind = "aggregation"
	KindTask        Kind = "task"
	KindPublish     Kind = "publish"
	KindInternal    Kind = "internal"
)

var kindSentinel = map[Kind]error{
	KindDecode:      ErrDecode,
	KindUnsupported: ErrUnsupportedFormat,
	KindEncode:      ErrEncode,
	KindResource:    ErrResource,
	KindCancelled:   ErrCancelled,
	KindAggregation: ErrAggregation,
	KindTask:        ErrTaskFailed,
	KindPublish:     ErrPublish,
}

// ItemError is the failure of one item. It matches both the sentinel of its
// Kind and the underlying cause with errors.Is.
type ItemError struct {
	Kind     Kind
	Index    int
	Filename string
	Err      error
}

func (e *ItemError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Filename, e.Err)
}

func (e *ItemError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s, ok := kindSentinel[e.Kind]; ok {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func itemError(kind Kind, item models.Item, err error) *ItemError {
	return &ItemError{Kind: kind, Index: item.Index, Filename: item.Filename, Err: err}
}

// KindOf reports the Kind of any error returned by Coordinator.Run.
func KindOf(err error) Kind {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	for _, kind := range []Kind{KindCancelled, KindDecode, KindUnsupported, KindEncode, KindResource, KindAggregation, KindTask, KindPublish} {
		if errors.Is(err, kindSentinel[kind]) {
			return kind
		}
	}
	return KindInternal
}

// FilenameOf returns the item an error refers to, if any.
func FilenameOf(err error) string {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Filename
	}
	return ""
}
