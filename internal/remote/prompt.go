package remote

import "strings"

// Prompt returns the instruction sent to the model. Models have been tuned
// against this exact text, so keep it byte for byte stable.
func Prompt(content, hint string) string {
	subject := "this code"
	if hint != "" {
		subject = "this " + hint + " code"
	}

	var sb strings.Builder
	sb.Grow(len(promptHead) + len(promptTail) + len(content) + 64)
	sb.WriteString(promptHead)
	sb.WriteString("Analyze " + subject + " and identify security issues:\n\n")
	sb.WriteString("```" + hint + "\n")
	sb.WriteString(content)
	sb.WriteString("\n```\n")
	sb.WriteString(promptTail)
	return sb.String()
}

const promptHead = "\nYou are a code security expert analyzing code for vulnerabilities.\n"

const promptTail = `
Your task is to return ONLY a JSON array of objects with these exact properties:
- severity: Must be exactly one of "high", "medium", or "low"
- message: A brief description of the vulnerability
- line: The line number where the issue occurs (as a number)
- rule: A short identifier for the type of vulnerability
- improvement: Specific actionable advice to fix the issue

Focus on:
- Security vulnerabilities (XSS, injections, etc.)
- Unsafe practices (eval, exec, etc.)
- Hardcoded credentials
- Input validation issues
- Insecure API usage patterns

IMPORTANT: 
1. Return valid JSON and nothing else
2. No explanations, markdown formatting, or any text before or after the JSON
3. The JSON array should look like this:
[
  {
    "severity": "high",
    "message": "Use of eval() can lead to code injection",
    "line": 42,
    "rule": "no-eval",
    "improvement": "Replace eval() with safer alternatives"
  },
  {
    "severity": "medium",
    "message": "Unvalidated user input",
    "line": 27,
    "rule": "validate-input",
    "improvement": "Add input validation before processing"
  }
]
`
