package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// MinuteLayout is the event date format: local time, minute precision.
const MinuteLayout = "2006-01-02T15:04"

func ISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func MinuteISO(t time.Time) string {
	return t.Format(MinuteLayout)
}

// ParseEventDate accepts the minute layout plus the looser forms the editor
// and old exports produce. Dates without a zone are read as local time.
func ParseEventDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	for _, layout := range []string{
		MinuteLayout,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02.01.2006 15:04",
		"02.01.2006",
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SinceHuman renders an elapsed duration the way the admin panel shows the
// last sync time.
func SinceHuman(d time.Duration) string {
	minutes := int(d / time.Minute)
	switch {
	case minutes < 1:
		return "Щойно"
	case minutes < 60:
		return strconv.Itoa(minutes) + " хв. тому"
	default:
		return strconv.Itoa(minutes/60) + " год. тому"
	}
}

// HMACSHA256Hex signs outgoing webhook bodies.
func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
