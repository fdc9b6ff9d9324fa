// Package verifier checks Telegram WebApp init data against the bot token.
package verifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/common/logger"
)

const (
	KeyQueryID  = "query_id"
	KeyUser     = "user"
	KeyAuthDate = "auth_date"
	KeyHash     = "hash"

	secretKeyLabel = "WebAppData"

	// the client may percent-encode the user blob more than once
	maxUserDecodePasses = 3
)

var allowedKeys = map[string]struct{}{
	KeyQueryID:  {},
	KeyUser:     {},
	KeyAuthDate: {},
	KeyHash:     {},
}

// Profile is the identity vouched for by Telegram.
type Profile struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	AvatarURL    string
	LanguageCode string
}

type Result struct {
	Profile  Profile
	Fields   map[string]string
	AuthDate time.Time
}

type Verifier struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

type Option func(*Verifier)

// WithMaxAge rejects payloads whose auth_date is older than d. Zero disables the check.
func WithMaxAge(d time.Duration) Option {
	return func(v *Verifier) { v.maxAge = d }
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func New(botToken string, opts ...Option) *Verifier {
	v := &Verifier{botToken: strings.TrimSpace(botToken), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify authenticates raw init data. It has no side effects.
func (v *Verifier) Verify(raw string) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.NewMalformedPayloadError("init data is empty")
	}

	normalized, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, apperrors.NewMalformedPayloadError("init data is not valid percent-encoding")
	}

	pairs := splitPairs(normalized)
	if len(pairs) == 0 {
		return nil, apperrors.NewMalformedPayloadError("init data has no key=value pairs")
	}

	fields := make(map[string]string, len(allowedKeys))
	var unknown []string
	for _, p := range pairs {
		if _, ok := allowedKeys[p.key]; !ok {
			unknown = append(unknown, p.key)
			continue
		}
		fields[p.key] = p.value
	}
	if len(unknown) > 0 {
		logger.Warn().Strs("keys", unknown).Msg("Ignoring unknown init data keys")
	}

	received, ok := fields[KeyHash]
	if !ok || received == "" {
		return nil, apperrors.NewInvalidSignatureError()
	}

	checkString, err := buildCheckString(pairs)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(Sign(v.botToken, checkString), received) {
		logger.Debug().Str("check_string", checkString).Msg("Init data signature mismatch")
		return nil, apperrors.NewInvalidSignatureError()
	}

	profile, err := decodeProfile(fields[KeyUser])
	if err != nil {
		return nil, err
	}

	res := &Result{Profile: profile, Fields: fields}
	if ts, err := strconv.ParseInt(fields[KeyAuthDate], 10, 64); err == nil {
		res.AuthDate = time.Unix(ts, 0)
	}

	if v.maxAge > 0 {
		if res.AuthDate.IsZero() {
			return nil, apperrors.NewMalformedPayloadError("auth_date is missing")
		}
		if age := v.now().Sub(res.AuthDate); age > v.maxAge {
			return nil, apperrors.NewInitDataExpiredError(age)
		}
	}

	return res, nil
}

type pair struct {
	key   string
	value string
}

func splitPairs(s string) []pair {
	var out []pair
	for _, part := range strings.Split(s, "&") {
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			continue
		}
		out = append(out, pair{key: part[:eq], value: part[eq+1:]})
	}
	return out
}

// buildCheckString covers every received pair except hash, including keys
// that are dropped from the result, since Telegram signs all of them.
func buildCheckString(pairs []pair) (string, error) {
	vals := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p.key == KeyHash {
			continue
		}
		decoded, err := url.QueryUnescape(p.value)
		if err != nil {
			return "", apperrors.NewMalformedPayloadError("field " + p.key + " is not valid percent-encoding")
		}
		vals[p.key] = decoded
	}

	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + vals[k]
	}
	return strings.Join(lines, "\n"), nil
}

// Sign returns the lowercase hex HMAC of checkString keyed by the bot token derived secret.
func Sign(botToken, checkString string) string {
	secret := hmac.New(sha256.New, []byte(secretKeyLabel))
	secret.Write([]byte(strings.TrimSpace(botToken)))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	return hex.EncodeToString(mac.Sum(nil))
}

func decodeProfile(blob string) (Profile, error) {
	if blob == "" {
		return Profile{}, apperrors.NewMalformedPayloadError("user field is missing")
	}

	s := blob
	for i := 0; i < maxUserDecodePasses && (strings.HasPrefix(s, "%7B") || strings.Contains(s, "%22")); i++ {
		next, err := url.QueryUnescape(s)
		if err != nil {
			return Profile{}, apperrors.NewMalformedPayloadError("user field is not valid percent-encoding")
		}
		s = next
	}

	var u initdata.User
	if err := json.Unmarshal([]byte(s), &u); err != nil {
		return Profile{}, apperrors.NewMalformedPayloadError("user field is not valid JSON")
	}
	if u.ID == 0 {
		return Profile{}, apperrors.NewMalformedPayloadError("user id is missing")
	}

	return Profile{
		TelegramID:   u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		AvatarURL:    u.PhotoURL,
		LanguageCode: u.LanguageCode,
	}, nil
}
