package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 1000
	MaxTitleLength       = 200
	MaxLinkLength        = 500
	MaxUsernameLength    = 32
	MaxCodeLength        = 64

	MaxMintAmount = 1000
)

var (
	// Telegram usernames: letters, digits and underscores, 5-32 chars
	telegramUsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{5,32}$`)
	hexColorRegex         = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	codeRegex             = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// NormalizeUsername strips whitespace and a leading @.
func NormalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

func ValidateUsername(username string) error {
	username = NormalizeUsername(username)
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(username) > MaxUsernameLength {
		return fmt.Errorf("username cannot exceed %d characters", MaxUsernameLength)
	}
	if !telegramUsernameRegex.MatchString(username) {
		return fmt.Errorf("username must contain only letters, numbers, and underscores, 5-32 characters")
	}
	return nil
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name cannot exceed %d characters", MaxNameLength)
	}
	return nil
}

// ValidateDescription allows an empty description.
func ValidateDescription(description string) error {
	if len(strings.TrimSpace(description)) > MaxDescriptionLength {
		return fmt.Errorf("description cannot exceed %d characters", MaxDescriptionLength)
	}
	return nil
}

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

func ValidateLink(link string) error {
	if len(link) > MaxLinkLength {
		return fmt.Errorf("link cannot exceed %d characters", MaxLinkLength)
	}
	return nil
}

func ValidateHexColor(color string) error {
	if !hexColorRegex.MatchString(color) {
		return fmt.Errorf("color must be a hex value like #A1B2C3, got %q", color)
	}
	return nil
}

func ValidatePrice(price int64) error {
	if price <= 0 {
		return fmt.Errorf("price must be greater than zero")
	}
	return nil
}

func ValidateReward(reward int64) error {
	if reward <= 0 {
		return fmt.Errorf("reward must be greater than zero")
	}
	return nil
}

func ValidateMintAmount(amount int) error {
	if amount < 1 || amount > MaxMintAmount {
		return fmt.Errorf("amount must be between 1 and %d", MaxMintAmount)
	}
	return nil
}

func ValidateMaxUses(maxUses int) error {
	if maxUses < 1 {
		return fmt.Errorf("max uses must be at least 1")
	}
	return nil
}

// ValidateCode checks an admin supplied code value. Empty means "generate one".
func ValidateCode(code string) error {
	if code == "" {
		return nil
	}
	if len(code) > MaxCodeLength {
		return fmt.Errorf("code cannot exceed %d characters", MaxCodeLength)
	}
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("code must contain only letters, numbers, dashes and underscores")
	}
	return nil
}

func ValidateBalance(balance int64) error {
	if balance < 0 {
		return fmt.Errorf("balance must not be negative")
	}
	return nil
}

// ValidateImageType accepts the raster formats the mini app can render.
func ValidateImageType(contentType string) error {
	switch strings.ToLower(contentType) {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return nil
	default:
		return fmt.Errorf("unsupported image type %q", contentType)
	}
}
