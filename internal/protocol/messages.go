// Package protocol defines the messages the picker script posts from the
// proxied iframe to its parent window, with a JSON codec and validation.
package protocol

import "encoding/json"

// Message types.
const (
	TypeElementSelected = "ELEMENT_SELECTED"
	TypeProxyReady      = "PROXY_READY"
)

// ContentType distinguishes text from image selections.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
)

// Message is implemented by every picker message.
type Message interface {
	MessageType() string
	Sequence() int64
}

// Content is what the picker extracted from the selected element.
// Text selections carry HTML; image selections carry Src and Alt. Src may be
// empty when the picked image has no source yet.
type Content struct {
	Type ContentType `json:"type" validate:"required,oneof=text image"`
	Text string      `json:"text"`
	HTML string      `json:"html,omitempty"`
	Src  string      `json:"src,omitempty"`
	Alt  string      `json:"alt,omitempty"`
}

// MarshalJSON always emits alt for images, matching what the picker posts.
func (c Content) MarshalJSON() ([]byte, error) {
	type plain Content
	if c.Type != ContentImage {
		return json.Marshal(plain(c))
	}
	return json.Marshal(struct {
		Type ContentType `json:"type"`
		Src  string      `json:"src"`
		Alt  string      `json:"alt"`
		Text string      `json:"text"`
	}{c.Type, c.Src, c.Alt, c.Text})
}

// ElementData describes one selected element.
type ElementData struct {
	Selector  string  `json:"selector" validate:"required"`
	Content   Content `json:"content"`
	TagName   string  `json:"tagName" validate:"required"`
	ClassName string  `json:"className"`
	ID        string  `json:"id"`
}

// ElementSelected is posted once per click while selection mode is on.
// Seq counts selections within one iframe lifetime, starting at 1.
type ElementSelected struct {
	Type string      `json:"type" validate:"required,eq=ELEMENT_SELECTED"`
	Seq  int64       `json:"seq" validate:"min=1"`
	Data ElementData `json:"data"`
}

// MessageType implements Message.
func (m *ElementSelected) MessageType() string { return TypeElementSelected }

// Sequence implements Message.
func (m *ElementSelected) Sequence() int64 { return m.Seq }

// ProxyReady is posted once when the picker has installed itself.
type ProxyReady struct {
	Type string `json:"type" validate:"required,eq=PROXY_READY"`
	Seq  int64  `json:"seq" validate:"eq=0"`
}

// MessageType implements Message.
func (m *ProxyReady) MessageType() string { return TypeProxyReady }

// Sequence implements Message.
func (m *ProxyReady) Sequence() int64 { return m.Seq }

// NewElementSelected builds a selection message.
func NewElementSelected(seq int64, data ElementData) *ElementSelected {
	return &ElementSelected{Type: TypeElementSelected, Seq: seq, Data: data}
}

// NewProxyReady builds the readiness message.
func NewProxyReady() *ProxyReady {
	return &ProxyReady{Type: TypeProxyReady}
}
