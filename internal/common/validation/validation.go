package validation

import (
	"fmt"
	"strings"
)

const (
	MaxTitleLength      = 255
	MaxBodyLength       = 4000
	MaxButtonTextLength = 100
	MaxMessageLength    = 4000

	MinWinnerCount = 1
	MaxWinnerCount = 100
)

// ValidateTitle checks the admin-facing giveaway title.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}

	if len(title) > MaxTitleLength {
		return fmt.Errorf("title cannot exceed %d characters", MaxTitleLength)
	}

	return nil
}

// ValidateMainBody checks the user-facing giveaway post body.
func ValidateMainBody(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("main body cannot be empty")
	}

	if len(body) > MaxBodyLength {
		return fmt.Errorf("main body cannot exceed %d characters", MaxBodyLength)
	}

	return nil
}

// ValidateWinnerCount checks the requested winner count.
func ValidateWinnerCount(count int) error {
	if count < MinWinnerCount {
		return fmt.Errorf("winner count must be at least %d", MinWinnerCount)
	}

	if count > MaxWinnerCount {
		return fmt.Errorf("winner count cannot exceed %d", MaxWinnerCount)
	}

	return nil
}

// ValidateButtonText checks the participation button label.
func ValidateButtonText(text string) error {
	if len(text) > MaxButtonTextLength {
		return fmt.Errorf("button text cannot exceed %d characters", MaxButtonTextLength)
	}

	return nil
}

// ValidateFinishMessage checks a single finish message. All three finish
// messages are required before a giveaway may finish.
func ValidateFinishMessage(name, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}

	if len(message) > MaxMessageLength {
		return fmt.Errorf("%s cannot exceed %d characters", name, MaxMessageLength)
	}

	return nil
}

// SanitizeInput trims whitespace and strips control characters that have
// no business in message text.
func SanitizeInput(text string) string {
	text = strings.TrimSpace(text)
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
}
