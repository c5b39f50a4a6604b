package backend

import (
	"strings"
)

const baseSystemPrompt = `
You are a professional recruitment assistant for a developer's portfolio website.

Your role is to help recruiters and hiring managers learn about the portfolio owner's:
- Technical skills and expertise
- Professional experience and projects
- Education and certifications
- Blog articles and talks

Guidelines:
- Answer in the SAME LANGUAGE as the user.
- Be professional, concise and helpful.
- Use the portfolio context to answer accurately.
- If the answer isn't in the context, say so honestly. Never make up information.
- Highlight relevant skills and achievements, with specific examples when available.
`

// BuildSystemPrompt returns the system instruction for the portfolio
// assistant. owner names the portfolio owner; portfolio is free-form
// context (skills, experience, projects) that grounds the answers.
func BuildSystemPrompt(owner, portfolio string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(baseSystemPrompt))

	if owner = strings.TrimSpace(owner); owner != "" {
		b.WriteString("\n\nThe portfolio owner is ")
		b.WriteString(owner)
		b.WriteString(".")
	}

	if portfolio = strings.TrimSpace(portfolio); portfolio != "" {
		b.WriteString("\n\nContext from the portfolio:\n")
		b.WriteString(portfolio)
	} else {
		b.WriteString("\n\nNo portfolio context is available; answer only general questions about the site.")
	}

	return b.String()
}
