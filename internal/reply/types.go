// Package reply turns backend answers into typed, deliverable replies.
package reply

import "errors"

// ErrEmptyAnswer signals that the backend returned no answer-typed text
// part at all.
var ErrEmptyAnswer = errors.New("backend answer is empty")

// Type classifies a reply for the delivering channel.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeFile  Type = "file"
	TypeError Type = "error"
)

// Reply is one outbound message. Content carries text for TEXT/ERROR and
// the local path for FILE; Image carries the raw bytes for IMAGE.
type Reply struct {
	Type    Type
	Content string
	Image   []byte
}

// NewText builds a TEXT reply.
func NewText(content string) Reply {
	return Reply{Type: TypeText, Content: content}
}

// NewImage builds an IMAGE reply from downloaded bytes.
func NewImage(data []byte) Reply {
	return Reply{Type: TypeImage, Image: data}
}

// NewFile builds a FILE reply from a local path.
func NewFile(path string) Reply {
	return Reply{Type: TypeFile, Content: path}
}

// NewError builds an ERROR reply.
func NewError(content string) Reply {
	return Reply{Type: TypeError, Content: content}
}

// PartType tags a parsed answer fragment.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
	PartFile  PartType = "file"
)

// Part is a fragment of a parsed multi-part answer, in document order.
// Content is the text for PartText and the link target otherwise.
type Part struct {
	Type    PartType
	Content string
}
