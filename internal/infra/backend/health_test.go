package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vietddude/mcroute/internal/core/domain"
)

func TestHealthDisabled(t *testing.T) {
	h := NewHealth(HealthConfig{})
	assert.Nil(t, h)
	assert.True(t, h.Allow())
	became, recovered := h.Record(domain.ResultTimeout)
	assert.False(t, became)
	assert.False(t, recovered)
	assert.False(t, h.IsTko())
}

func TestHealthTkoAndProbe(t *testing.T) {
	now := time.Unix(0, 0)
	h := NewHealth(HealthConfig{Threshold: 3, Cooldown: 5 * time.Second})
	h.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		became, _ := h.Record(domain.ResultTimeout)
		assert.False(t, became)
	}
	// A miss is a protocol answer and resets the count
	h.Record(domain.ResultNotFound)
	for i := 0; i < 2; i++ {
		h.Record(domain.ResultConnectError)
	}
	assert.False(t, h.IsTko())

	became, _ := h.Record(domain.ResultConnectTimeout)
	assert.True(t, became)
	assert.True(t, h.IsTko())
	assert.False(t, h.Allow())

	now = now.Add(6 * time.Second)
	assert.True(t, h.Allow(), "probe after cooldown")
	assert.False(t, h.Allow(), "only one probe at a time")

	// Failed probe restarts the cooldown
	h.Record(domain.ResultTimeout)
	assert.False(t, h.Allow())

	now = now.Add(6 * time.Second)
	assert.True(t, h.Allow())
	_, recovered := h.Record(domain.ResultFound)
	assert.True(t, recovered)
	assert.False(t, h.IsTko())
	assert.True(t, h.Allow())
}
