package service

// dslSchemaPrompt describes the DSL the model must answer with
const dslSchemaPrompt = `
Return ONLY JSON object with this schema:
{
  "intent": "distribution|trend|top_n|comparison|table",
  "metrics": [{"name":"count","field":"*","as":"tickets"}],
  "dimensions": ["city","ticket_type"],
  "filters": [{"field":"created_at","op":">=","value":"2026-01-01T00:00:00Z"}],
  "time_grain": "day|week|month|null",
  "limit": 100,
  "chart": {"type":"bar|stacked_bar|line|pie|heatmap|table", "x":"...", "y":"...", "series":"..."}
}

Allowed fields: created_at, city, ticket_type(type), sentiment, segment, language, priority, office_id, manager_id.
Rules:
- Use count metric unless user asks table/raw rows.
- If date range not provided, still return valid DSL without invented columns.
- No SQL, no markdown, no explanations. JSON only.
`

// BuildPrompt returns the interpretation prompt for a user request
func BuildPrompt(query string) string {
	return dslSchemaPrompt + "\nUser request: " + query
}

// BuildRepairPrompt asks the model to turn a malformed answer into a JSON object
func BuildRepairPrompt(raw string) string {
	return "Return ONLY valid JSON object. No markdown, no comments, no text.\nInvalid content:\n" + raw
}
