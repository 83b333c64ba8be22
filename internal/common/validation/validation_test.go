package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Weekly prize"))
	assert.Error(t, ValidateTitle(""))
	assert.Error(t, ValidateTitle("   "))
	assert.Error(t, ValidateTitle(strings.Repeat("x", MaxTitleLength+1)))
}

func TestValidateMainBody(t *testing.T) {
	assert.NoError(t, ValidateMainBody("Join to win"))
	assert.Error(t, ValidateMainBody(""))
	assert.Error(t, ValidateMainBody(strings.Repeat("x", MaxBodyLength+1)))
}

func TestValidateWinnerCount(t *testing.T) {
	assert.NoError(t, ValidateWinnerCount(1))
	assert.NoError(t, ValidateWinnerCount(MaxWinnerCount))
	assert.Error(t, ValidateWinnerCount(0))
	assert.Error(t, ValidateWinnerCount(MaxWinnerCount+1))
}

func TestValidateFinishMessage(t *testing.T) {
	assert.NoError(t, ValidateFinishMessage("winner_message", "You won"))
	assert.Error(t, ValidateFinishMessage("winner_message", ""))
	assert.Error(t, ValidateFinishMessage("winner_message", strings.Repeat("x", MaxMessageLength+1)))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello", SanitizeInput("  hello  "))
	assert.Equal(t, "line1\nline2", SanitizeInput("line1\nline2"))
	assert.Equal(t, "ab", SanitizeInput("a\x00\x1bb"))
}
