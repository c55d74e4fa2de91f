package rules

import "github.com/CZERTAINLY/Sniffer/internal/model"

// order of rules is the order of reported findings
var catalogs = map[model.Language][]Rule{
	model.LanguageJavaScript: javascript,
	model.LanguagePython:     python,
	model.LanguageJava:       java,
}

var javascript = []Rule{
	{
		ID:          "no-eval",
		Severity:    model.SeverityHigh,
		Mode:        Presence,
		Pattern:     substring("eval("),
		Message:     "Use of eval() can be dangerous and lead to code injection vulnerabilities",
		Improvement: "Replace eval() with safer alternatives such as Function constructor or JSON.parse() for JSON data. Consider restructuring your code to avoid dynamic code execution.",
	},
	{
		ID:          "no-dangerous-html",
		Severity:    model.SeverityHigh,
		Mode:        Presence,
		Pattern:     substring("dangerouslySetInnerHTML"),
		Message:     "dangerouslySetInnerHTML can lead to XSS vulnerabilities",
		Improvement: "Use safer alternatives like React components and props. If you must use HTML, ensure all user input is properly sanitized using a library like DOMPurify.",
	},
	{
		ID:          "no-inner-html",
		Severity:    model.SeverityMedium,
		Mode:        Presence,
		Pattern:     substring("innerHTML"),
		Message:     "Use of innerHTML can lead to XSS vulnerabilities",
		Improvement: "Use safer DOM manipulation methods like textContent or createElement() and appendChild(). For frameworks like React, use their built-in components and props system.",
	},
	{
		ID:          "no-hardcoded-secrets",
		Severity:    model.SeverityMedium,
		Mode:        Presence,
		Pattern:     regex(`(?i)password.*=.*['"][^'"]*['"]`),
		Message:     "Hardcoded password detected",
		Improvement: "Use environment variables or a secure vault service to store sensitive information. Never hardcode secrets in your source code.",
	},
	{
		ID:          "no-console",
		Severity:    model.SeverityLow,
		Mode:        Repeated,
		Pattern:     substring("console.log"),
		Message:     "Console statements should be removed in production code",
		Improvement: "Remove console.log statements or replace with proper logging that can be disabled in production. Consider using a logging library that supports different log levels.",
	},
	{
		ID:          "no-todo-comments",
		Severity:    model.SeverityLow,
		Mode:        Presence,
		Pattern:     anyOf{"TODO", "FIXME"},
		Message:     "TODO or FIXME comment found",
		Improvement: "Address the TODO/FIXME comments before deploying to production. If it's a known limitation, document it properly and create an issue in your project management system.",
	},
}

var python = []Rule{
	{
		ID:          "no-exec",
		Severity:    model.SeverityHigh,
		Mode:        Presence,
		Pattern:     substring("exec("),
		Message:     "Use of exec() can lead to code injection vulnerabilities",
		Improvement: "Avoid using exec() entirely. Restructure your code to use more specific functions or modules that perform the required functionality without executing arbitrary code.",
	},
	{
		ID:          "no-unsafe-deserialization",
		Severity:    model.SeverityHigh,
		Mode:        Presence,
		Pattern:     substring("pickle.loads"),
		Message:     "Unsafe deserialization using pickle can lead to code execution",
		Improvement: "Use safer serialization alternatives like JSON, YAML, or MessagePack. If pickle is necessary, only unpickle data from trusted sources and consider using safer modules like marshmallow.",
	},
	{
		ID:          "validate-input",
		Severity:    model.SeverityMedium,
		Mode:        Repeated,
		Pattern:     substring("input("),
		Message:     "Input should be type-checked and sanitized",
		Improvement: "Always validate and sanitize user input. Use type conversion functions like int() or float() with try/except blocks, or use input validation libraries like Pydantic.",
	},
	{
		ID:          "no-shell-true",
		Severity:    model.SeverityMedium,
		Mode:        Presence,
		Pattern:     substring("shell=True"),
		Message:     "Using shell=True with subprocess can be dangerous",
		Improvement: "Avoid using shell=True with subprocess. Instead, pass the command as a list of arguments and set shell=False (the default). This prevents shell injection attacks.",
	},
}

var java = []Rule{
	{
		ID:          "no-runtime-exec",
		Severity:    model.SeverityHigh,
		Mode:        Presence,
		Pattern:     substring("Runtime.getRuntime().exec("),
		Message:     "Using Runtime.exec() can be dangerous for command execution",
		Improvement: "Use ProcessBuilder instead, which has better security features. Always validate and sanitize any user input that goes into command execution.",
	},
	{
		ID:          "no-stacktrace-print",
		Severity:    model.SeverityMedium,
		Mode:        Presence,
		Pattern:     substring("printStackTrace"),
		Message:     "printStackTrace exposes implementation details",
		Improvement: "Use a proper logging framework like SLF4J or Log4j. Pass exceptions to the logger rather than printing stack traces directly.",
	},
	{
		ID:          "use-logger",
		Severity:    model.SeverityLow,
		Mode:        Repeated,
		Pattern:     substring("System.out.println"),
		Message:     "System.out.println should be replaced with proper logging",
		Improvement: "Replace System.out.println with a proper logging framework like SLF4J or Log4j. This provides better control over log levels and output destinations.",
	},
	{
		ID:          "use-optional",
		Severity:    model.SeverityLow,
		Mode:        Presence,
		Pattern:     anyOf{" == null", " != null"},
		Message:     "Consider using Optional to handle null values",
		Improvement: "Use Java's Optional<T> type to represent optional values instead of null checks. This makes the API more explicit and helps prevent NullPointerExceptions.",
	},
}
