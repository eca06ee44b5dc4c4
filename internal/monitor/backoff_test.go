package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_DoublesPerFailure(t *testing.T) {
	b := Backoff{Base: time.Second, Max: time.Minute}

	assert.Equal(t, 1*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, 8*time.Second, b.Next())
	assert.Equal(t, 4, b.Failures())
}

func TestBackoff_CappedAtMax(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 5 * time.Second}

	assert.Equal(t, 1*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())
}

func TestBackoff_ResetRestartsSequence(t *testing.T) {
	b := Backoff{Base: time.Second, Max: time.Minute}
	b.Next()
	b.Next()
	b.Reset()

	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, 1*time.Second, b.Next())
}

func TestBackoff_ZeroValueDefaults(t *testing.T) {
	var b Backoff
	assert.Equal(t, time.Second, b.Next())
}
