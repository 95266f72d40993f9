package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeElementSelected(t *testing.T) {
	raw := `{"type":"ELEMENT_SELECTED","seq":3,"data":{"selector":"div.card:nth-child(2) > h2","content":{"type":"text","text":"Title","html":"Title"},"tagName":"h2","className":"","id":""}}`

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	sel, ok := msg.(*ElementSelected)
	require.True(t, ok)
	assert.Equal(t, int64(3), sel.Sequence())
	assert.Equal(t, "div.card:nth-child(2) > h2", sel.Data.Selector)
	assert.Equal(t, ContentText, sel.Data.Content.Type)
	assert.Equal(t, "Title", sel.Data.Content.Text)
}

func TestDecodeProxyReady(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"PROXY_READY","seq":0}`))
	require.NoError(t, err)
	assert.Equal(t, TypeProxyReady, msg.MessageType())

	msg, err = Decode([]byte(`{"type":"PROXY_READY"}`))
	require.NoError(t, err, "seq defaults to zero")
	assert.Equal(t, int64(0), msg.Sequence())
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing selector", `{"type":"ELEMENT_SELECTED","seq":1,"data":{"content":{"type":"text","text":"x"},"tagName":"p"}}`, "data.selector"},
		{"missing tag name", `{"type":"ELEMENT_SELECTED","seq":1,"data":{"selector":"p","content":{"type":"text","text":"x"}}}`, "data.tagName"},
		{"bad content type", `{"type":"ELEMENT_SELECTED","seq":1,"data":{"selector":"p","content":{"type":"video"},"tagName":"p"}}`, "data.content.type"},
		{"zero seq", `{"type":"ELEMENT_SELECTED","seq":0,"data":{"selector":"p","content":{"type":"text","text":"x"},"tagName":"p"}}`, "seq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)

			var fields []string
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestDecodeImageWithoutSrc(t *testing.T) {
	raw := `{"type":"ELEMENT_SELECTED","seq":1,"data":{"selector":"img","content":{"type":"image","alt":"Logo"},"tagName":"img"}}`

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	sel, ok := msg.(*ElementSelected)
	require.True(t, ok)
	assert.Equal(t, ContentImage, sel.Data.Content.Type)
	assert.Empty(t, sel.Data.Content.Src)
	assert.Equal(t, "Logo", sel.Data.Content.Alt)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"HELLO"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeElementSelected([]byte(`{"type":"PROXY_READY"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestImageContentAlwaysCarriesAlt(t *testing.T) {
	msg := NewElementSelected(1, ElementData{
		Selector: "img",
		TagName:  "img",
		Content:  Content{Type: ContentImage, Src: "https://x/img.png"},
	})
	raw, err := Encode(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	content := decoded["data"].(map[string]any)["content"].(map[string]any)
	assert.Equal(t, "image", content["type"])
	assert.Equal(t, "", content["alt"])
	assert.Equal(t, "", content["text"])
	assert.NotContains(t, content, "html")
}

func TestEncodeValidates(t *testing.T) {
	_, err := Encode(NewElementSelected(0, ElementData{}))
	assert.Error(t, err)

	raw, err := Encode(NewProxyReady())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PROXY_READY","seq":0}`, string(raw))
}
