package tui

import "strings"

// ProviderCatalog is a provider preset offered by the connection form.
type ProviderCatalog struct {
	Name     string
	Provider string
	Adapter  string
	BaseURL  string
	Hint     string
}

func defaultProviderCatalog() []ProviderCatalog {
	return []ProviderCatalog{
		{Name: "OpenAI", Provider: "openai", Adapter: "openai", Hint: "Paste your OpenAI API key."},
		{Name: "Anthropic", Provider: "anthropic", Adapter: "anthropic", Hint: "Paste your Anthropic API key."},
		{Name: "Azure OpenAI", Provider: "azure", Adapter: "azure", Hint: "Base URL is the deployment endpoint."},
		{Name: "Amazon Bedrock", Provider: "bedrock", Adapter: "bedrock", Hint: "Secret is the JSON access key pair."},
		{Name: "Google Vertex AI", Provider: "google-vertex-ai", Adapter: "google-vertex-ai", Hint: "Secret is the service account JSON."},
		{Name: "Google AI Studio", Provider: "google-ai-studio", Adapter: "google-ai-studio", Hint: "Paste your AI Studio API key."},
		{Name: "Custom (OpenAI compatible)", Provider: "", Adapter: "openai", Hint: "Name the provider and set its base URL."},
	}
}

// parseModelList splits a comma or newline separated model list, dropping
// blanks and duplicates while keeping order.
func parseModelList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })
	seen := make(map[string]struct{}, len(fields))
	var models []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		models = append(models, f)
	}
	return models
}
