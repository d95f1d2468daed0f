package drafting

import (
	"fmt"
	"strings"
)

const systemInstructions = `You edit consumer credit dispute letters addressed to credit reporting agencies.
Rewrite the letter below so it is clear, firm and professional.
Keep every fact, account reference, date and statutory citation exactly as given.
Do not invent facts, add placeholders or include commentary.
Return only the letter body as plain text, with paragraphs separated by blank lines.`

// BuildPrompt renders the user prompt sent to chat-style drafting services.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(systemInstructions)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Dispute round: %d\n", max(req.Facts.Round, 1))
	fmt.Fprintf(&b, "Legal basis: %s\n", req.Facts.Citation())
	b.WriteString("\n--- LETTER ---\n")
	b.WriteString(strings.TrimSpace(req.Template))
	b.WriteString("\n--- END ---\n")
	return b.String()
}
