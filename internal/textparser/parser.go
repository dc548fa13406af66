// Package textparser extracts token hints from free-text channel messages.
package textparser

import (
	"regexp"
	"strings"

	"github.com/bimakw/token-radar/internal/domain/entities"
)

// Hint is what a message says about one token address
type Hint struct {
	Address string
	Symbol  string
	Name    string
	Socials entities.SocialLinks
}

const maxNameLength = 64

var (
	// hex runs are matched greedily so 64-char hashes are not split into addresses
	hexRunPattern = regexp.MustCompile(`(?i)(?:0x)?[0-9a-f]{40,}`)

	symbolPattern = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9]{1,9})\b`)
	namePattern   = regexp.MustCompile(`(?i)\b(?:token\s+name|name)\s*:\s*([^\n\r]+)`)

	websitePattern  = regexp.MustCompile(`(?i)\b(?:website|site|web)\s*:\s*(https?://\S+)`)
	twitterPattern  = regexp.MustCompile(`(?i)\b(?:twitter|x)\s*:\s*(?:https?://)?(?:www\.)?(?:twitter\.com/|x\.com/)?@?([A-Za-z0-9_]{1,15})\b`)
	telegramPattern = regexp.MustCompile(`(?i)\b(?:telegram|tg)\s*:\s*(?:https?://)?(?:t\.me/)?@?([A-Za-z0-9_]{5,32})\b`)

	deployPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:new\s+)?token\s+(?:deployed|created|launched)\s*:?\s*\$?([A-Za-z][A-Za-z0-9]{1,9})\b`),
		regexp.MustCompile(`(?i)\b(?:deployed|created|launched)\s+\$?([A-Za-z][A-Za-z0-9]{1,9})\s+token\b`),
	}
)

// Parse returns one hint per distinct address in text, in order of first
// appearance. Symbol, name and social links are shared by every address in
// the message. Text without an address yields no hints.
func Parse(text string) []Hint {
	addresses := extractAddresses(text)
	if len(addresses) == 0 {
		return nil
	}

	shared := Hint{
		Symbol: extractSymbol(text),
		Name:   extractName(text),
		Socials: entities.SocialLinks{
			Website:  extractWebsite(text),
			Twitter:  extractHandle(twitterPattern, text, "https://twitter.com/"),
			Telegram: extractHandle(telegramPattern, text, "https://t.me/"),
		},
	}

	hints := make([]Hint, 0, len(addresses))
	for _, addr := range addresses {
		h := shared
		h.Address = addr
		hints = append(hints, h)
	}
	return hints
}

func extractAddresses(text string) []string {
	seen := make(map[string]struct{})
	var out []string

	for _, run := range hexRunPattern.FindAllString(text, -1) {
		lower := strings.ToLower(run)
		if !strings.HasPrefix(lower, "0x") {
			lower = "0x" + lower
		}
		if len(lower) != 42 {
			continue
		}
		if lower == entities.ZeroAddress {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	return out
}

func extractSymbol(text string) string {
	if m := symbolPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, p := range deployPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func extractName(text string) string {
	m := namePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	name := []rune(strings.TrimSpace(m[1]))
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return strings.TrimSpace(string(name))
}

func extractWebsite(text string) string {
	m := websitePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimRight(m[1], ".,;:!?)]}>\"'")
}

func extractHandle(p *regexp.Regexp, text, prefix string) string {
	m := p.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return prefix + m[1]
}
