package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalContent_NoHTMLEscaping(t *testing.T) {
	raw, err := marshalContent(Content{"url": "https://example.com/?a=1&b=<2>"})
	require.NoError(t, err)
	assert.Equal(t, `{"url":"https://example.com/?a=1&b=<2>"}`, raw)
}

func TestUnmarshalContent_Empty(t *testing.T) {
	content, err := unmarshalContent("")
	require.NoError(t, err)
	assert.Nil(t, content)
}

func TestUnmarshalContent_Invalid(t *testing.T) {
	_, err := unmarshalContent("{not json")
	assert.Error(t, err)
}
