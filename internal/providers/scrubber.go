package providers

import "regexp"

var (
	// VAR=value lines keep the name.
	envRegex  = regexp.MustCompile(`(?m)^([A-Z_]+)=\S+$`)
	jwtRegex  = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
	skRegex   = regexp.MustCompile(`sk-[a-zA-Z0-9\-]{20,}`)
	pkRegex   = regexp.MustCompile(`(?:pk|sk)-lf-[a-zA-Z0-9\-]{8,}`)
	aizaRegex = regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`)
	ghpRegex  = regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`)
)

// Clean redacts secrets from backend error text before it is shown or
// logged. Connection creation errors may echo the submitted key.
func Clean(input string) string {
	input = envRegex.ReplaceAllString(input, "${1}=[REDACTED]")
	input = pkRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	input = skRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	input = jwtRegex.ReplaceAllString(input, "[REDACTED_JWT]")
	input = aizaRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	input = ghpRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	return input
}
