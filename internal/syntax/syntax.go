// Package syntax validates generated code before it is returned to the
// caller. Go gets a real parse; other languages get structural checks
// that catch the usual generation failures (truncated output, unbalanced
// delimiters, declarations without bodies).
package syntax

import (
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
)

// Result is the outcome of validating one code snippet.
type Result struct {
	// Valid reports whether the code passed all checks.
	Valid bool

	// Errors holds human-readable messages when invalid. They are fed
	// back to the code generator on retry, so they must name the problem
	// concretely.
	Errors []string

	// Language is the language the code was validated as.
	Language string
}

// Validator performs per-language syntax validation.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// SupportedLanguages lists languages with dedicated checks. Anything else
// falls back to delimiter balancing only.
func (v *Validator) SupportedLanguages() []string {
	return []string{"Go", "Python", "JavaScript", "TypeScript", "Java", "C#", "JSON"}
}

// Validate checks code for the given language. Language matching is
// case-insensitive.
func (v *Validator) Validate(code, language string) Result {
	if strings.TrimSpace(code) == "" {
		return Result{Valid: false, Errors: []string{"code is empty"}, Language: language}
	}

	var errs []string
	switch strings.ToLower(language) {
	case "go", "golang":
		errs = validateGo(code)
	case "json":
		errs = validateJSON(code)
	case "python":
		errs = validatePython(code)
	case "javascript", "js", "jsx":
		errs = checkBalancedDelimiters(code)
		errs = append(errs, checkJavaScript(code)...)
	case "typescript", "ts", "tsx":
		errs = checkBalancedDelimiters(code)
		errs = append(errs, checkJavaScript(code)...)
		errs = append(errs, checkTypeScript(code)...)
	case "java":
		errs = checkBalancedDelimiters(code)
		errs = append(errs, checkJava(code)...)
	case "c#", "csharp":
		errs = checkBalancedDelimiters(code)
		errs = append(errs, checkCSharp(code)...)
	default:
		errs = checkBalancedDelimiters(code)
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Language: language}
}

// validateGo parses the code with go/parser. Snippets without a package
// clause are wrapped so fragments of a file still parse.
func validateGo(code string) []string {
	src := code
	if !regexp.MustCompile(`(?m)^\s*package\s+\w+`).MatchString(src) {
		src = "package main\n\n" + src
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "generated.go", src, 0); err != nil {
		return []string{fmt.Sprintf("go parse error: %v", err)}
	}
	return nil
}

func validateJSON(code string) []string {
	if !json.Valid([]byte(code)) {
		return []string{"invalid JSON"}
	}
	return nil
}

// validatePython has no real parser available, so it checks delimiter
// balance plus block headers that end without a colon.
func validatePython(code string) []string {
	errs := checkBalancedDelimiters(code)

	blockHeader := regexp.MustCompile(`^\s*(def|class|if|elif|else|for|while|try|except|finally|with)\b`)
	for i, line := range strings.Split(stripStringsAndComments(code), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !blockHeader.MatchString(line) {
			continue
		}
		// Skip headers that continue onto the next line, either with a
		// backslash or an unclosed bracket. The balance check covers those.
		if strings.HasSuffix(trimmed, "\\") || lineHasOpenBracket(trimmed) {
			continue
		}
		if !strings.HasSuffix(trimmed, ":") {
			errs = append(errs, fmt.Sprintf("missing ':' after block statement at line %d", i+1))
		}
	}
	return errs
}

// lineHasOpenBracket reports whether a single line opens more brackets
// than it closes.
func lineHasOpenBracket(line string) bool {
	depth := 0
	for _, ch := range line {
		switch ch {
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
		}
	}
	return depth > 0
}

var (
	jsFunctionNoBody = regexp.MustCompile(`function\s+\w+\s*\([^)]*\)\s*;`)
	jsArrowNoBody    = regexp.MustCompile(`=>\s*;`)
	tsInterfaceEmpty = regexp.MustCompile(`interface\s+\w+\s*;`)
	tsTypeEmpty      = regexp.MustCompile(`type\s+\w+\s*;`)
	classDeclaration = regexp.MustCompile(`class\s+\w+`)
	methodNoBody     = regexp.MustCompile(`(public|private|protected)\s+\w+\s+\w+\s*\([^)]*\)\s*;`)
)

func checkJavaScript(code string) []string {
	var errs []string
	if jsFunctionNoBody.MatchString(code) {
		errs = append(errs, "function declaration without body")
	}
	if jsArrowNoBody.MatchString(code) {
		errs = append(errs, "arrow function without body or expression")
	}
	return errs
}

func checkTypeScript(code string) []string {
	var errs []string
	if tsInterfaceEmpty.MatchString(code) {
		errs = append(errs, "interface declaration without body")
	}
	if tsTypeEmpty.MatchString(code) {
		errs = append(errs, "type declaration without definition")
	}
	return errs
}

func checkJava(code string) []string {
	var errs []string
	if strings.Contains(code, "class ") && !classDeclaration.MatchString(code) {
		errs = append(errs, "invalid class declaration")
	}
	if methodNoBody.MatchString(code) && !strings.Contains(code, "abstract") {
		errs = append(errs, "method declaration without body (not abstract)")
	}
	return errs
}

func checkCSharp(code string) []string {
	var errs []string
	if strings.Contains(code, "class ") && !classDeclaration.MatchString(code) {
		errs = append(errs, "invalid class declaration")
	}
	if methodNoBody.MatchString(code) &&
		!strings.Contains(code, "abstract") && !strings.Contains(code, "interface") {
		errs = append(errs, "method declaration without body (not abstract or interface)")
	}
	return errs
}

// checkBalancedDelimiters verifies that braces, brackets, and parentheses
// pair up, after stripping strings and comments to avoid false positives.
func checkBalancedDelimiters(code string) []string {
	type opening struct {
		char rune
		line int
	}
	pairs := map[rune]rune{')': '(', '}': '{', ']': '['}

	var errs []string
	var stack []opening
	line := 1

	for _, ch := range stripStringsAndComments(code) {
		switch ch {
		case '\n':
			line++
		case '(', '{', '[':
			stack = append(stack, opening{char: ch, line: line})
		case ')', '}', ']':
			if len(stack) == 0 {
				errs = append(errs, fmt.Sprintf("unmatched closing %q at line %d", ch, line))
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.char != pairs[ch] {
				errs = append(errs, fmt.Sprintf("mismatched delimiter: expected closing for %q but found %q at line %d", top.char, ch, line))
			}
		}
	}

	for _, o := range stack {
		errs = append(errs, fmt.Sprintf("unclosed %q from line %d", o.char, o.line))
	}
	return errs
}

var (
	lineCommentSlash = regexp.MustCompile(`(?m)//.*?$`)
	lineCommentHash  = regexp.MustCompile(`(?m)#.*?$`)
	blockComment     = regexp.MustCompile(`(?s)/\*.*?\*/`)
	tripleDouble     = regexp.MustCompile(`(?s)""".*?"""`)
	tripleSingle     = regexp.MustCompile(`(?s)'''.*?'''`)
	doubleQuoted     = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	singleQuoted     = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)
	backQuoted       = regexp.MustCompile("`(?:[^`\\\\]|\\\\.)*`")
)

// stripStringsAndComments blanks out string literals and comments while
// preserving newlines so line numbers in errors stay accurate.
func stripStringsAndComments(code string) string {
	keepLines := func(s string) string {
		return strings.Repeat("\n", strings.Count(s, "\n"))
	}

	code = blockComment.ReplaceAllStringFunc(code, keepLines)
	code = tripleDouble.ReplaceAllStringFunc(code, keepLines)
	code = tripleSingle.ReplaceAllStringFunc(code, keepLines)
	code = lineCommentSlash.ReplaceAllString(code, "")
	code = lineCommentHash.ReplaceAllString(code, "")
	code = doubleQuoted.ReplaceAllString(code, `""`)
	code = singleQuoted.ReplaceAllString(code, "''")
	code = backQuoted.ReplaceAllStringFunc(code, keepLines)
	return code
}
