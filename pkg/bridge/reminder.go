// Package bridge connects the DocStore chat collection to the agent: a
// polling worker claims pending user messages and answers them, and a small
// natural-language parser turns reminder requests into scheduler jobs.
package bridge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReminderIntent is a parsed reminder request. Derived per message, never
// stored.
type ReminderIntent struct {
	Message    string
	Delay      time.Duration
	DelayHuman string
}

var amountUnitRe = regexp.MustCompile(`^(\d+)([A-Za-z]*)$`)

var unitDurations = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second,
	"second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute,
	"minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour,
	"hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
}

var unitNames = map[time.Duration]string{
	time.Second:    "second",
	time.Minute:    "minute",
	time.Hour:      "hour",
	24 * time.Hour: "day",
}

var reminderPrefixes = []string{
	"set a reminder to",
	"set a reminder for",
	"set reminder to",
	"set reminder for",
	"reminder to",
	"reminder for",
}

// ParseReminder recognizes three request shapes, tried in order:
//
//  1. "/remind <delay> <message>"
//  2. "remind me ... in <delay> [message]" (the last " in " is the boundary)
//  3. "set a reminder to <message> in <delay>" and variants
//
// Returns nil when the text is not a reminder.
func ParseReminder(input string) *ReminderIntent {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	if strings.HasPrefix(lower, "/remind") {
		return parseSlashRemind(text)
	}
	if strings.Contains(lower, "remind me") && strings.Contains(lower, " in ") {
		return parseRemindMe(text, lower)
	}
	if strings.Contains(lower, "reminder") && strings.Contains(lower, " in ") {
		return parseReminderPhrase(text, lower)
	}
	return nil
}

func parseSlashRemind(text string) *ReminderIntent {
	rest := strings.TrimSpace(text[len("/remind"):])
	delay, consumed, ok := parseDelayTokens(strings.Fields(rest))
	if !ok {
		return nil
	}
	message := normalizeMessage(strings.Join(strings.Fields(rest)[consumed:], " "))
	if message == "" {
		return nil
	}
	return newIntent(message, delay)
}

func parseRemindMe(text, lower string) *ReminderIntent {
	idx := strings.LastIndex(lower, " in ")
	if idx < 0 {
		return nil
	}
	left := text[:idx]
	right := text[idx+len(" in "):]

	rightFields := strings.Fields(right)
	delay, consumed, ok := parseDelayTokens(rightFields)
	if !ok {
		return nil
	}

	// Prefer the text between "remind me" and the delay boundary.
	message := ""
	if pos := strings.Index(strings.ToLower(left), "remind me"); pos >= 0 {
		message = normalizeMessage(left[pos+len("remind me"):])
	}
	if message == "" {
		// "remind me in 10m to call" puts the message after the delay.
		message = normalizeMessage(strings.Join(rightFields[consumed:], " "))
	}
	if message == "" {
		return nil
	}
	return newIntent(message, delay)
}

func parseReminderPhrase(text, lower string) *ReminderIntent {
	idx := strings.LastIndex(lower, " in ")
	if idx < 0 {
		return nil
	}
	delay, _, ok := parseDelayTokens(strings.Fields(text[idx+len(" in "):]))
	if !ok {
		return nil
	}

	for _, prefix := range reminderPrefixes {
		pos := strings.Index(lower, prefix)
		if pos < 0 || pos+len(prefix) >= idx {
			continue
		}
		if message := normalizeMessage(text[pos+len(prefix) : idx]); message != "" {
			return newIntent(message, delay)
		}
	}
	return nil
}

// parseDelayTokens reads an amount and unit from the leading fields, either
// attached ("5m") or separated ("5 minutes"). Returns the fields consumed.
func parseDelayTokens(fields []string) (time.Duration, int, bool) {
	if len(fields) == 0 {
		return 0, 0, false
	}

	m := amountUnitRe.FindStringSubmatch(fields[0])
	if m == nil {
		return 0, 0, false
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil || amount <= 0 {
		return 0, 0, false
	}

	unitToken := strings.ToLower(m[2])
	consumed := 1
	if unitToken == "" {
		if len(fields) < 2 {
			return 0, 0, false
		}
		unitToken = strings.ToLower(strings.TrimRight(fields[1], ".,!?;"))
		consumed = 2
	}

	unit, ok := unitDurations[unitToken]
	if !ok {
		return 0, 0, false
	}
	return time.Duration(amount) * unit, consumed, true
}

// normalizeMessage strips the connective words a natural phrasing leaves
// behind and the trailing punctuation.
func normalizeMessage(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"about ", "to "} {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.TrimRight(s, ".?!,; ")
	return strings.TrimSpace(s)
}

func newIntent(message string, delay time.Duration) *ReminderIntent {
	return &ReminderIntent{
		Message:    message,
		Delay:      delay,
		DelayHuman: humanDelay(delay),
	}
}

// humanDelay renders the delay in its largest exact unit with singular/plural
// agreement: 300s -> "5 minutes", 60s -> "1 minute".
func humanDelay(delay time.Duration) string {
	for _, unit := range []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second} {
		if delay >= unit && delay%unit == 0 {
			n := int(delay / unit)
			name := unitNames[unit]
			if n != 1 {
				name += "s"
			}
			return fmt.Sprintf("%d %s", n, name)
		}
	}
	return delay.String()
}

// shellSingleQuote wraps text for safe interpolation into a sh command line.
func shellSingleQuote(text string) string {
	return "'" + strings.ReplaceAll(text, "'", `'"'"'`) + "'"
}
