package agents

import "strings"

// frameworkLanguages maps supported frameworks to their primary language.
var frameworkLanguages = map[string]string{
	"NestJS":      "TypeScript",
	"React":       "JavaScript",
	"FastAPI":     "Python",
	"Spring Boot": "Java",
	".NET Core":   "C#",
	"Vue.js":      "JavaScript",
	"Angular":     "TypeScript",
	"Django":      "Python",
	"Express.js":  "JavaScript",
	"Gin":         "Go",
}

// frameworkKeywords maps lowercase prompt keywords to framework names.
// Ordered lookup happens over the prompt, first match wins, so more
// specific keywords come before generic ones.
var frameworkKeywords = []struct {
	keyword   string
	framework string
}{
	{"nestjs", "NestJS"},
	{"nest.js", "NestJS"},
	{"fastapi", "FastAPI"},
	{"spring boot", "Spring Boot"},
	{"spring", "Spring Boot"},
	{".net core", ".NET Core"},
	{"dotnet", ".NET Core"},
	{"asp.net", ".NET Core"},
	{"vue.js", "Vue.js"},
	{"vuejs", "Vue.js"},
	{"vue", "Vue.js"},
	{"angular", "Angular"},
	{"django", "Django"},
	{"express.js", "Express.js"},
	{"expressjs", "Express.js"},
	{"express", "Express.js"},
	{"react", "React"},
	{"gin", "Gin"},
}

// DetectFramework scans a prompt for framework mentions. Returns the
// framework name, or "" when no supported framework is mentioned.
func DetectFramework(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, fk := range frameworkKeywords {
		if strings.Contains(lower, fk.keyword) {
			return fk.framework
		}
	}
	return ""
}

// DetectLanguage resolves the target language for code generation from
// the framework, falling back to keyword scanning of the prompt, and
// finally to JavaScript as the most common generation target.
func DetectLanguage(framework, prompt string) string {
	if lang, ok := frameworkLanguages[framework]; ok {
		return lang
	}

	lower := strings.ToLower(prompt)
	switch {
	case containsAny(lower, "golang", " go "):
		return "Go"
	case containsAny(lower, "python", "fastapi", "django", "flask"):
		return "Python"
	case containsAny(lower, "typescript", "nestjs", "angular"):
		return "TypeScript"
	case containsAny(lower, "javascript", "react", "vue", "express", "node"):
		return "JavaScript"
	case containsAny(lower, "java", "spring"):
		return "Java"
	case containsAny(lower, "c#", "csharp", ".net", "dotnet"):
		return "C#"
	default:
		return "JavaScript"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
