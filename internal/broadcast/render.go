package broadcast

import (
	"regexp"
	"sort"
	"strings"

	"whatsapp-messenger/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}\s]+)\}`)

// IsReservedField reports whether key collides with a built-in contact
// attribute. Reserved keys never act as extra fields.
func IsReservedField(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "name", "phone", "number":
		return true
	}
	return false
}

// Render personalizes text for one contact. {name} is replaced first, then
// each extra field in ascending key order. Placeholders without a matching
// field stay in the output as written.
func Render(text string, contact models.Contact) string {
	out := strings.ReplaceAll(text, "{name}", contact.Name)

	fields := contact.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !IsReservedField(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		out = strings.ReplaceAll(out, "{"+k+"}", fields[k])
	}
	return out
}

// Placeholders lists the distinct {field} names used in text, in the order
// they first appear.
func Placeholders(text string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
