package enrichment

import (
	"fmt"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

// EventPrompt builds the prompts used to turn a social post into an event.
type EventPrompt struct {
	// Region is the target locale, e.g. "Nigeria".
	Region string
}

// SystemPrompt returns the fixed instruction set.
func (p EventPrompt) SystemPrompt() string {
	categories := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		categories[i] = string(c)
	}

	return fmt.Sprintf(`You MUST output ONLY a valid JSON object. No markdown, no text before or after it.

You decide whether a social media post announces a PUBLIC event in %[1]s that people can attend, and extract its details.

Rules:
1. Ignore personal life updates, weddings, birthdays and private parties unless they are clearly public ticketed events.
2. Ignore news reports about past events.
3. The event MUST take place in %[1]s.
4. Resolve relative dates against the post creation time. "tomorrow" adds 1 day, "next week" adds 7 days.
5. If the post is not a genuine public upcoming or ongoing event, return {"isEvent": false}.

Output format:
{
  "isEvent": boolean,
  "title": string (clear, short title),
  "description": string (cleaned description),
  "date": string (ISO 8601 with timezone),
  "location": string (City, State),
  "category": string (one of: %[2]s),
  "isFree": boolean,
  "link": string or null (external link if present)
}`, p.Region, strings.Join(categories, ", "))
}

// UserPrompt embeds one post and its creation time.
func (p EventPrompt) UserPrompt(text string, createdAt time.Time) string {
	return fmt.Sprintf("Post text: %q\nPost created at: %s", text, createdAt.UTC().Format(time.RFC3339))
}
