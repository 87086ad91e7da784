// ABOUTME: Classifies a free-form message into exactly one calendar intent
// ABOUTME: Fixed precedence: add, delete, list, summarize, then unrecognized

package interpreter

import (
	"regexp"
	"strings"
	"time"

	"github.com/harper/calendar-mcp/pkg/events"
)

// Intent is the classified purpose of a message. The set of implementations is closed.
type Intent interface {
	Name() string
	isIntent()
}

// AddIntent creates an event. Date is passed to the store unvalidated, except that
// today/tomorrow are already resolved. MissingDate is set when no date expression was found.
type AddIntent struct {
	Title       string
	Date        string
	Description string
	MissingDate bool
}

// DeleteIntent removes every event matching Title
type DeleteIntent struct {
	Title string
}

// ListIntent shows events, optionally only those on one day (zero On means all)
type ListIntent struct {
	On time.Time
}

// SummarizeIntent summarizes events, optionally only those on one day
type SummarizeIntent struct {
	On time.Time
}

// UnrecognizedIntent is anything that matched no pattern
type UnrecognizedIntent struct{}

func (AddIntent) Name() string          { return "add" }
func (DeleteIntent) Name() string       { return "delete" }
func (ListIntent) Name() string         { return "list" }
func (SummarizeIntent) Name() string    { return "summarize" }
func (UnrecognizedIntent) Name() string { return "unrecognized" }

func (AddIntent) isIntent()          {}
func (DeleteIntent) isIntent()       {}
func (ListIntent) isIntent()         {}
func (SummarizeIntent) isIntent()    {}
func (UnrecognizedIntent) isIntent() {}

var (
	addShorthand    = regexp.MustCompile(`(?is)^add\s*:(.*)$`)
	addNatural      = regexp.MustCompile(`(?is)^(?:please\s+)?(?:add|create|schedule)\s+(.+)$`)
	deleteShorthand = regexp.MustCompile(`(?is)^delete\s*:(.*)$`)
	deleteNatural   = regexp.MustCompile(`(?is)^(?:please\s+)?(?:delete|remove|cancel)\s+(.+)$`)
	listTrigger     = regexp.MustCompile(`(?i)\blist\b|\bwhat(?:'|’)?s\s+on\b|\bshow\b`)
	summaryTrigger  = regexp.MustCompile(`(?i)\bsummar(?:ize|ise|y)\b|\bwhat(?:'|’)?s\s+coming\s+up\b`)

	// dateExpr finds a date expression preceded by whitespace inside a natural add
	dateExpr       = regexp.MustCompile(`(?i)\s(\d{4}-\d{2}-\d{2}|today|tomorrow)(?:$|[\s.,;:!?|])`)
	trailingLinker = regexp.MustCompile(`(?i)\s+(?:on|for|at)$`)
	descLead       = regexp.MustCompile(`(?i)^(?:with\s+)?(?:description|desc|notes?)\b\s*[:\-]?\s*`)
	dateLike       = regexp.MustCompile(`^\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}$`)
)

type rule func(msg string, today time.Time) (Intent, bool)

// rules are evaluated in order; the first match wins
var rules = []rule{classifyAdd, classifyDelete, classifyList, classifySummarize}

// Classify maps one message to an intent. now anchors today/tomorrow.
func Classify(message string, now time.Time) Intent {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return UnrecognizedIntent{}
	}
	today := events.Day(now)
	for _, r := range rules {
		if intent, ok := r(msg, today); ok {
			return intent
		}
	}
	return UnrecognizedIntent{}
}

func classifyAdd(msg string, today time.Time) (Intent, bool) {
	if m := addShorthand.FindStringSubmatch(msg); m != nil {
		return parseAddShorthand(m[1], today), true
	}
	if m := addNatural.FindStringSubmatch(msg); m != nil {
		return parseAddNatural(m[1], today), true
	}
	return nil, false
}

// parseAddShorthand handles "Title|Date|Description"; the description may itself contain pipes
func parseAddShorthand(body string, today time.Time) Intent {
	parts := strings.Split(body, "|")
	title := strings.TrimSpace(parts[0])
	if title == "" {
		return UnrecognizedIntent{}
	}
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return AddIntent{Title: title, MissingDate: true}
	}
	return AddIntent{
		Title:       title,
		Date:        resolveKeyword(strings.TrimSpace(parts[1]), today),
		Description: strings.TrimSpace(strings.Join(parts[2:], "|")),
	}
}

// parseAddNatural splits "<title> [on|for|at] <date> [separator description]".
// An explicit YYYY-MM-DD wins over a keyword; a keyword with no title before it
// is treated as part of the title.
func parseAddNatural(rest string, today time.Time) Intent {
	rest = strings.TrimSpace(rest)
	matches := dateExpr.FindAllStringSubmatchIndex(" "+rest, -1)

	pick := func(explicit bool) (AddIntent, bool) {
		for _, m := range matches {
			start, end := m[2]-1, m[3]-1
			token := rest[start:end]
			if isKeyword(token) == explicit {
				continue
			}
			title := strings.TrimSpace(trailingLinker.ReplaceAllString(strings.TrimSpace(rest[:start]), ""))
			if title == "" {
				continue
			}
			return AddIntent{
				Title:       title,
				Date:        resolveKeyword(token, today),
				Description: cleanDescription(rest[end:]),
			}, true
		}
		return AddIntent{}, false
	}

	if intent, ok := pick(true); ok {
		return intent
	}
	if intent, ok := pick(false); ok {
		return intent
	}
	return AddIntent{Title: rest, MissingDate: true}
}

func cleanDescription(s string) string {
	s = strings.TrimLeft(s, " \t-:–—,.;|")
	s = descLead.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func classifyDelete(msg string, _ time.Time) (Intent, bool) {
	var title string
	if m := deleteShorthand.FindStringSubmatch(msg); m != nil {
		title = m[1]
	} else if m := deleteNatural.FindStringSubmatch(msg); m != nil {
		title = m[1]
	} else {
		return nil, false
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return UnrecognizedIntent{}, true
	}
	return DeleteIntent{Title: title}, true
}

func classifyList(msg string, today time.Time) (Intent, bool) {
	if !listTrigger.MatchString(msg) {
		return nil, false
	}
	on, ok := findDateFilter(msg, today)
	if !ok {
		return UnrecognizedIntent{}, true
	}
	return ListIntent{On: on}, true
}

func classifySummarize(msg string, today time.Time) (Intent, bool) {
	if !summaryTrigger.MatchString(msg) {
		return nil, false
	}
	on, ok := findDateFilter(msg, today)
	if !ok {
		return UnrecognizedIntent{}, true
	}
	return SummarizeIntent{On: on}, true
}

// findDateFilter scans msg for at most one date expression. ok is false when a
// date-looking token does not parse or more than one date is present.
func findDateFilter(msg string, today time.Time) (time.Time, bool) {
	var found time.Time
	count := 0
	for _, field := range strings.Fields(msg) {
		token := normalizeToken(field)
		var day time.Time
		switch {
		case token == "today":
			day = today
		case token == "tomorrow":
			day = today.AddDate(0, 0, 1)
		case dateLike.MatchString(token):
			parsed, err := events.ParseDate(token)
			if err != nil {
				return time.Time{}, false
			}
			day = parsed
		default:
			continue
		}
		count++
		if count > 1 {
			return time.Time{}, false
		}
		found = day
	}
	return found, true
}

func normalizeToken(field string) string {
	token := strings.ToLower(strings.Trim(field, `?.,!;:"()[]`))
	token = strings.TrimSuffix(token, "'s")
	token = strings.TrimSuffix(token, "’s")
	return token
}

func isKeyword(token string) bool {
	lower := strings.ToLower(token)
	return lower == "today" || lower == "tomorrow"
}

// resolveKeyword turns today/tomorrow into a YYYY-MM-DD string and leaves anything else untouched
func resolveKeyword(date string, today time.Time) string {
	switch strings.ToLower(date) {
	case "today":
		return events.FormatDate(today)
	case "tomorrow":
		return events.FormatDate(today.AddDate(0, 0, 1))
	default:
		return date
	}
}
