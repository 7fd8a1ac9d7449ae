package domain

import "errors"

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
	ErrSizeMismatch   = errors.New("object size mismatch")
	ErrObjectTooLarge = errors.New("object exceeds maximum size")
	ErrBadOffset      = errors.New("offset outside object")
)

// NodeStats describes what a storage node currently holds.
type NodeStats struct {
	NodeID  string `json:"nodeId"`
	Region  string `json:"region"`
	Objects int64  `json:"objects"`
	Bytes   int64  `json:"bytes"`
}

// ObjectRange is the part of an object a reader yields.
type ObjectRange struct {
	Offset int64
	Length int64
	Total  int64
}

// Partial reports whether the range covers less than the whole object.
func (r ObjectRange) Partial() bool {
	return r.Offset > 0 || r.Length < r.Total
}
