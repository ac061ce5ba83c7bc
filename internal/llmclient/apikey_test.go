package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApiKey_StringMasksMiddle(t *testing.T) {
	k := NewApiKey("sk-1234567890")
	assert.Equal(t, "sk-1234567890", k.Get())
	assert.Equal(t, "api_key=sk******90", k.String())
}

func TestApiKey_StringMasksFullyWhenShort(t *testing.T) {
	k := NewApiKey("abcd")
	assert.Equal(t, "api_key=******", k.String())
}
