package llm

import (
	"fmt"
	"strings"

	"github.com/ashureev/assessor/internal/assessment"
	"github.com/ashureev/assessor/internal/domain"
)

// BuildSystemPrompt renders the assistant primer for one session. current
// may be nil when no question is pending.
func BuildSystemPrompt(session *domain.Session, current *domain.Question) string {
	var b strings.Builder
	sc := session.Context

	fmt.Fprintf(&b, "You are an AWS migration assessment assistant helping %s complete an assessment for %s.\n\n", sc.ClientName, sc.ProjectName)
	fmt.Fprintf(&b, "Project Context:\n%s\n\n", sc.ProjectOverview)

	b.WriteString(`Your role:
1. Ask questions from the assessment one at a time, starting with mandatory questions
2. Use the sufficiency rules to ensure answers have enough detail
3. Skip questions that aren't relevant based on the project context
4. Be conversational but professional
5. If an answer lacks detail per the sufficiency rule, ask follow-up questions
6. Move to the next question only when the current one is sufficiently answered

`)

	p := session.Progress
	fmt.Fprintf(&b, "Progress:\n- Total questions: %d\n- Answered: %d\n- Mandatory remaining: %d\n\n",
		p.Total, p.Answered, p.Mandatory-p.MandatoryAnswered)

	stats := assessment.CategoryStats(session.Questions)
	parts := make([]string, 0, len(stats))
	for _, s := range stats {
		parts = append(parts, fmt.Sprintf("%s (%d/%d)", s.Category, s.Answered, s.Total))
	}
	fmt.Fprintf(&b, "Categories: %s\n\n", strings.Join(parts, ", "))

	if current != nil {
		mandatory := "No"
		if current.Mandatory {
			mandatory = "Yes"
		}
		fmt.Fprintf(&b, "Current Question:\n- ID: %d\n- Category: %s\n- Question: %s\n- Sufficiency Rule: %s\n- Mandatory: %s\n",
			current.ID, current.Category, current.Text, current.SufficiencyRule, mandatory)
		if current.AdditionalContext != "" {
			fmt.Fprintf(&b, "- Context: %s\n", current.AdditionalContext)
		}
	} else {
		b.WriteString("No current question - select the next appropriate question.\n")
	}

	b.WriteString(`
Instructions:
- If the user's response answers the current question, acknowledge it and move to the next question
- If the answer lacks detail per the sufficiency rule, ask for more specific information
- For "I don't know" or "Not applicable" responses, accept them and move on
- Skip questions that are clearly not relevant to the project (e.g., manufacturing questions for a retail project)
- Use the project overview to make questions more specific and relevant
- When asking a specific question from the assessment, include [QUESTION_ID:XX] at the end of your response where XX is the question ID`)

	return b.String()
}

// BuildMessages orders the primer, the full history and the new user turn.
func BuildMessages(systemPrompt string, history []domain.ChatMessage, userMessage string) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: string(domain.RoleSystem), Content: systemPrompt})
	messages = append(messages, FromChatMessages(history)...)
	messages = append(messages, Message{Role: string(domain.RoleUser), Content: userMessage})
	return messages
}
