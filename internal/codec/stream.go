// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package codec

import (
	"bytes"
	"io"
	"reflect"
)

// Stream is a body that is passed through as bytes rather than encoded.
// An operation returning a Stream has its content sent verbatim; an operation
// accepting a Stream body receives the raw request body.
type Stream interface {
	io.Reader
	ContentType() string
	// ContentLength is the number of bytes in the stream, or -1 if unknown.
	ContentLength() int64
}

var streamType = reflect.TypeFor[Stream]()

// IsStream reports whether t is, or implements, Stream.
func IsStream(t reflect.Type) bool {
	return t != nil && (t == streamType || t.Implements(streamType))
}

// BytesStream is a Stream over an in-memory byte slice.
type BytesStream struct {
	*bytes.Reader
	contentType string
	length      int64
}

// NewBytesStream returns a stream over b. An empty contentType defaults to
// application/octet-stream.
func NewBytesStream(b []byte, contentType string) *BytesStream {
	if contentType == "" {
		contentType = ContentTypeOctetStream
	}
	return &BytesStream{Reader: bytes.NewReader(b), contentType: contentType, length: int64(len(b))}
}

func (s *BytesStream) ContentType() string  { return s.contentType }
func (s *BytesStream) ContentLength() int64 { return s.length }

// ReaderStream adapts an io.Reader of possibly unknown length.
type ReaderStream struct {
	io.Reader
	contentType string
	length      int64
}

// NewReaderStream wraps r; pass length -1 when unknown.
func NewReaderStream(r io.Reader, contentType string, length int64) *ReaderStream {
	if contentType == "" {
		contentType = ContentTypeOctetStream
	}
	return &ReaderStream{Reader: r, contentType: contentType, length: length}
}

func (s *ReaderStream) ContentType() string  { return s.contentType }
func (s *ReaderStream) ContentLength() int64 { return s.length }
