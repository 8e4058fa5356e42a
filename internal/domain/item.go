package domain

import "strings"

// Status enumerates item lifecycle states.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Eligible reports whether an item in this state may join the next batch.
func (s Status) Eligible() bool {
	return s == StatusIdle || s == StatusError
}

// SourceImage is the uploaded original. It is never modified after the item
// is created.
type SourceImage struct {
	Name        string
	MIME        string
	Data        []byte
	Preview     []byte
	PreviewMIME string
	PreviewURL  string
}

// ResultImage is a generated photo.
type ResultImage struct {
	MIME   string
	Width  int
	Height int
	Data   []byte
	URL    string
}

// Empty reports whether the result carries no usable image.
func (r *ResultImage) Empty() bool {
	return r == nil || len(r.Data) == 0
}

// Item is one upload and its generation outcome.
type Item struct {
	ID     string
	Source SourceImage
	Status Status
	Result *ResultImage
	Error  string
}

// Patch is the lifecycle part of an item replaced by a store update.
type Patch struct {
	Status Status
	Result *ResultImage
	Error  string
}

// Processing marks an item as in flight.
func Processing() Patch { return Patch{Status: StatusProcessing} }

// Completed records a successful generation.
func Completed(result *ResultImage) Patch {
	return Patch{Status: StatusCompleted, Result: result}
}

// Failed records a failed generation with its message.
func Failed(message string) Patch {
	return Patch{Status: StatusError, Error: message}
}

// Normalize keeps only the payload that belongs to the patch status, so
// result and error are never set together.
func (p Patch) Normalize() Patch {
	switch p.Status {
	case StatusCompleted:
		p.Error = ""
	case StatusError:
		p.Result = nil
		if strings.TrimSpace(p.Error) == "" {
			p.Error = FallbackErrorMessage
		}
	default:
		p.Result = nil
		p.Error = ""
	}
	return p
}

// Apply returns a copy of the item with the patch applied.
func (it Item) Apply(p Patch) Item {
	p = p.Normalize()
	it.Status = p.Status
	it.Result = p.Result
	it.Error = p.Error
	return it
}

// HasResult reports whether the item is completed with image data.
func (it Item) HasResult() bool {
	return it.Status == StatusCompleted && !it.Result.Empty()
}
