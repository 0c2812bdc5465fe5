package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExamCode(t *testing.T) {
	code, err := ParseExamCode("  MATH101 ")
	require.NoError(t, err)
	assert.Equal(t, ExamCode("MATH101"), code)

	t.Run("too short", func(t *testing.T) {
		_, err := ParseExamCode("ABC")
		assert.Error(t, err)
		_, err = ParseExamCode("   AB   ")
		assert.Error(t, err, "length is checked after trimming")
	})
}

func TestParseParticipantStatus(t *testing.T) {
	for _, valid := range []string{"not_enrolled", "enrolled", "passed", "failed"} {
		status, err := ParseParticipantStatus(valid)
		require.NoError(t, err, valid)
		assert.True(t, status.IsValid())
	}

	_, err := ParseParticipantStatus("graduated")
	assert.Error(t, err)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusNotEnrolled.Terminal())
	assert.False(t, StatusEnrolled.Terminal())
	assert.True(t, StatusPassed.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestAddressIsZero(t *testing.T) {
	assert.True(t, Address("").IsZero())
	assert.False(t, Address("user:alice").IsZero())
}
