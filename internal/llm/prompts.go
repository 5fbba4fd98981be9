package llm

import "fmt"

// ExtractionPrompt generates the prompt for entity/relation extraction from a
// conversation window.
func ExtractionPrompt(window string) string {
	return fmt.Sprintf(`You are a knowledge extraction system. Analyze this conversation window and extract entities and the relations between them.

CONVERSATION:
%s

Entity types:
- memory: a fact worth remembering that fits nothing else
- person: people mentioned by name
- project: projects, products, companies, codebases
- concept: technologies, ideas, topics
- event: things that happened, with rough timing in the body
- preference: stated likes, dislikes, or choices

Rules:
- Only extract genuinely useful, persistent knowledge
- Skip trivial or conversation-mechanics details
- label is a short name; body is one or two sentences of substance
- category is usually empty; use "core" only for durable identity facts about the user themselves
- relations reference entities by their label
- Return ONLY a JSON object, no other text

Return a JSON object:
{
  "entities": [{"type": "person|project|concept|event|preference|memory", "label": "short name", "body": "one or two sentences", "category": ""}],
  "relations": [{"source": "label", "target": "label", "relation": "belongs_to|works_on|depends_on|knows|..."}]
}

If nothing worth extracting, return: {"entities": [], "relations": []}`, window)
}

// SummaryPrompt generates the prompt for summarizing a closed session.
func SummaryPrompt(transcript string) string {
	return fmt.Sprintf(`You are a conversation summarizer. Condense this session into a short summary that preserves decisions, facts, and open threads.

SESSION:
%s

Rules:
- Maximum 200 words
- Keep names, projects, and concrete outcomes
- Drop greetings, filler, and back-and-forth mechanics
- Return plain text, no headers`, transcript)
}
