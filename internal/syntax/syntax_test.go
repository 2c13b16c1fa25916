package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmptyCode(t *testing.T) {
	v := NewValidator()
	result := v.Validate("   \n\t", "Python")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "code is empty")
	assert.Equal(t, "Python", result.Language)
}

func TestValidateGo(t *testing.T) {
	v := NewValidator()

	valid := v.Validate(`package main

func main() {
	println("hello")
}`, "Go")
	assert.True(t, valid.Valid, "%v", valid.Errors)

	// Snippet without a package clause still parses.
	snippet := v.Validate(`func add(a, b int) int { return a + b }`, "go")
	assert.True(t, snippet.Valid, "%v", snippet.Errors)

	broken := v.Validate(`func add(a, b int) int { return a +`, "Go")
	assert.False(t, broken.Valid)
	require.NotEmpty(t, broken.Errors)
	assert.Contains(t, broken.Errors[0], "go parse error")
}

func TestValidateJSON(t *testing.T) {
	v := NewValidator()
	assert.True(t, v.Validate(`{"key": [1, 2, 3]}`, "JSON").Valid)
	assert.False(t, v.Validate(`{"key": [1, 2,}`, "JSON").Valid)
}

func TestValidatePython(t *testing.T) {
	v := NewValidator()

	valid := v.Validate(`def greet(name):
    return f"hello {name}"`, "Python")
	assert.True(t, valid.Valid, "%v", valid.Errors)

	missingColon := v.Validate(`def greet(name)
    return name`, "Python")
	assert.False(t, missingColon.Valid)
	require.NotEmpty(t, missingColon.Errors)
	assert.Contains(t, missingColon.Errors[0], "missing ':'")

	// Multi-line signatures are not false positives.
	multiline := v.Validate(`def greet(
    name,
    greeting,
):
    return greeting + name`, "Python")
	assert.True(t, multiline.Valid, "%v", multiline.Errors)
}

func TestValidateJavaScript(t *testing.T) {
	v := NewValidator()

	valid := v.Validate(`function greet(name) { return "hi " + name; }`, "JavaScript")
	assert.True(t, valid.Valid, "%v", valid.Errors)

	noBody := v.Validate(`function greet(name);`, "JavaScript")
	assert.False(t, noBody.Valid)
	assert.Contains(t, noBody.Errors, "function declaration without body")

	emptyArrow := v.Validate(`const f = () => ;`, "JavaScript")
	assert.False(t, emptyArrow.Valid)
}

func TestValidateTypeScript(t *testing.T) {
	v := NewValidator()

	valid := v.Validate(`interface Props { name: string }
const Greeting = ({ name }: Props) => <div>{name}</div>;`, "TypeScript")
	assert.True(t, valid.Valid, "%v", valid.Errors)

	emptyInterface := v.Validate(`interface Props;`, "TypeScript")
	assert.False(t, emptyInterface.Valid)
	assert.Contains(t, emptyInterface.Errors, "interface declaration without body")
}

func TestValidateJava(t *testing.T) {
	v := NewValidator()

	valid := v.Validate(`public class Greeter {
    public String greet(String name) { return "hi " + name; }
}`, "Java")
	assert.True(t, valid.Valid, "%v", valid.Errors)

	noBody := v.Validate(`public class Greeter {
    public String greet(String name);
}`, "Java")
	assert.False(t, noBody.Valid)

	abstractOK := v.Validate(`public abstract class Greeter {
    public abstract String greet(String name);
}`, "Java")
	assert.True(t, abstractOK.Valid, "%v", abstractOK.Errors)
}

func TestValidateUnknownLanguageBalancesDelimiters(t *testing.T) {
	v := NewValidator()
	assert.True(t, v.Validate(`fn main() { let x = [1, 2]; }`, "Rust").Valid)
	assert.False(t, v.Validate(`fn main() { let x = [1, 2; }`, "Rust").Valid)
}

func TestBalancedDelimiters(t *testing.T) {
	tests := []struct {
		name string
		code string
		want int // number of errors
	}{
		{"balanced", "({[]})", 0},
		{"unclosed", "({", 2},
		{"unmatched closing", ")", 1},
		{"mismatched", "(]", 1},
		{"bracket inside string ignored", `x = "unclosed [ in string"`, 0},
		{"bracket inside comment ignored", "// comment with {\nx = 1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, checkBalancedDelimiters(tt.code), tt.want)
		})
	}
}

func TestDelimiterErrorsIncludeLineNumbers(t *testing.T) {
	errs := checkBalancedDelimiters("x = 1\ny = (2\nz = 3")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "line 2")
}

func TestSupportedLanguages(t *testing.T) {
	v := NewValidator()
	assert.Contains(t, v.SupportedLanguages(), "Go")
	assert.Contains(t, v.SupportedLanguages(), "Python")
	assert.Contains(t, v.SupportedLanguages(), "TypeScript")
}
