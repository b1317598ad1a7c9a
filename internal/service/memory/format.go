package memory

import (
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
)

// FormatContext renders an assembled context as a prompt block for the
// response generator. Live turns and retrieved memories get separate sections.
func FormatContext(ac *core.AssembledContext) string {
	if ac == nil || len(ac.Entries) == 0 {
		return ""
	}

	var live, past []string
	for _, e := range ac.Entries {
		if e.Live {
			live = append(live, fmt.Sprintf("%s: %s", e.Role, e.Content))
			continue
		}
		past = append(past, fmt.Sprintf("- [%s] %s: %s",
			e.Timestamp.Format("2006-01-02"), e.Role, e.Content))
	}

	var sb strings.Builder

	if len(live) > 0 {
		sb.WriteString("\n### Current Conversation\n")
		sb.WriteString(strings.Join(live, "\n"))
		sb.WriteString("\n")
	}

	if len(past) > 0 {
		sb.WriteString("\n### Related Past Conversations\n")
		sb.WriteString(strings.Join(past, "\n"))
		sb.WriteString("\n")
	}

	if len(ac.Topics) > 0 {
		sb.WriteString("\nTopics: ")
		sb.WriteString(strings.Join(ac.Topics, ", "))
		sb.WriteString("\n")
	}
	if ac.Tone != "" {
		sb.WriteString("Tone: ")
		sb.WriteString(string(ac.Tone))
		sb.WriteString("\n")
	}

	return sb.String()
}
