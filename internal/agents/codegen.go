package agents

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/llm"
	"github.com/fyrsmithlabs/agentd/internal/syntax"
)

var codegenTracer = otel.Tracer("agentd.agents.codegen")

// maxContextDocs limits how many documentation chunks go into the
// generation prompt.
const maxContextDocs = 3

// maxContextChars truncates each documentation chunk in the prompt.
const maxContextChars = 500

const codegenSystemPrompt = `You are an expert software engineer specializing in generating high-quality, production-ready code.

Your responsibilities:
1. Generate syntactically correct code that follows language best practices
2. Follow framework-specific conventions and patterns
3. Write clean, readable, and maintainable code
4. Include appropriate comments for complex logic
5. Use proper error handling and validation

Important guidelines:
- Generate ONLY the code requested, no explanations unless asked
- Ensure all imports and dependencies are included
- Use proper typing/type hints where applicable
- Follow the framework's naming conventions`

// frameworkGuidance adds framework-specific instructions to the system
// prompt.
var frameworkGuidance = map[string]string{
	"NestJS": `Framework: NestJS (TypeScript)
- Use decorators: @Controller(), @Get(), @Post(), @Injectable()
- Follow dependency injection patterns and proper module structure
- Implement DTOs with class-validator decorators
- Follow NestJS naming conventions (*.controller.ts, *.service.ts)`,
	"React": `Framework: React (JavaScript/TypeScript)
- Use functional components with hooks
- Follow React hooks rules (useState, useEffect, useCallback, useMemo)
- Use proper prop types or TypeScript interfaces
- Follow React naming conventions (PascalCase for components)`,
	"FastAPI": `Framework: FastAPI (Python)
- Use type hints for all function parameters and returns
- Use Pydantic models for request/response validation
- Use async def for asynchronous endpoints
- Include proper HTTP status codes and response models`,
	"Spring Boot": `Framework: Spring Boot (Java)
- Use annotations: @RestController, @Service, @Repository
- Prefer constructor injection
- Implement DTOs and entities separately`,
	".NET Core": `Framework: .NET Core (C#)
- Use attributes: [ApiController], [HttpGet], [HttpPost]
- Follow dependency injection patterns with IServiceCollection
- Implement proper model validation with data annotations`,
	"Vue.js": `Framework: Vue.js (JavaScript/TypeScript)
- Use Composition API with <script setup>
- Follow Vue 3 patterns with ref, reactive, computed`,
	"Angular": `Framework: Angular (TypeScript)
- Use decorators: @Component, @Injectable, @Input, @Output
- Use RxJS observables for async operations`,
	"Django": `Framework: Django (Python)
- Follow Django ORM patterns for models
- Use Django forms or DRF serializers`,
	"Express.js": `Framework: Express.js (JavaScript/TypeScript)
- Use middleware patterns and proper route handlers
- Include proper error handling middleware`,
	"Gin": `Framework: Gin (Go)
- Use gin.Context handlers and router groups
- Bind and validate request payloads with struct tags`,
}

// CodeGenerationResult is the outcome of one generation run, including
// failed ones. A false Valid with non-empty Code is a best-effort result,
// never silently dropped.
type CodeGenerationResult struct {
	Code       string
	Language   string
	Framework  string
	Valid      bool
	Errors     []string
	TokensUsed int
	Attempts   int
	Sources    []string
}

// CodeGenerationStep generates code and validates its syntax, retrying
// with error feedback up to MaxRetries extra attempts.
type CodeGenerationStep struct {
	llm        llm.Client
	validator  *syntax.Validator
	maxRetries int
	logger     *zap.Logger
}

// NewCodeGenerationStep wires the code generation step. maxRetries is
// the number of retries after the first attempt; negative values are
// treated as zero.
func NewCodeGenerationStep(client llm.Client, validator *syntax.Validator, maxRetries int, logger *zap.Logger) *CodeGenerationStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = syntax.NewValidator()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &CodeGenerationStep{
		llm:        client,
		validator:  validator,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Generate produces code for the prompt, feeding syntax errors from each
// failed attempt back into the next one. It makes at most maxRetries+1
// generation calls; exhaustion returns the last code with Valid=false
// and the accumulated errors.
func (g *CodeGenerationStep) Generate(ctx context.Context, prompt string, docContext []DocumentationResult, framework string) CodeGenerationResult {
	ctx, span := codegenTracer.Start(ctx, "CodeGenerationStep.Generate")
	defer span.End()

	language := DetectLanguage(framework, prompt)
	span.SetAttributes(
		attribute.String("framework", framework),
		attribute.String("language", language),
	)

	result := CodeGenerationResult{
		Language:  language,
		Framework: framework,
		Sources:   docSources(docContext),
	}

	systemPrompt := g.buildSystemPrompt(framework, docContext)
	userPrompt := buildUserPrompt(prompt, docContext)

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		result.Attempts = attempt + 1

		resp, err := g.llm.Complete(ctx, llm.Request{
			System: systemPrompt,
			User:   userPrompt,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("generation attempt %d failed: %v", attempt+1, err))
			g.logger.Warn("generation attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				// Deadline hit; further attempts would fail the same way.
				return result
			}
			continue
		}
		result.TokensUsed += resp.TokensUsed

		code := StripCodeFences(resp.Content)
		result.Code = code

		validation := g.validator.Validate(code, language)
		if validation.Valid {
			result.Valid = true
			result.Errors = nil
			g.logger.Info("code generation succeeded",
				zap.String("language", language),
				zap.Int("attempts", result.Attempts),
				zap.Int("tokens_used", result.TokensUsed),
			)
			return result
		}

		result.Errors = append(result.Errors, validation.Errors...)
		g.logger.Warn("syntax validation failed",
			zap.Int("attempt", attempt+1),
			zap.Strings("errors", validation.Errors),
		)

		// Feed the errors back so the next attempt can self-correct.
		if attempt < g.maxRetries {
			userPrompt = fmt.Sprintf(
				"%s\n\nPrevious attempt had syntax errors:\n%s\n\nPlease fix these errors and generate valid %s code.",
				userPrompt, strings.Join(validation.Errors, "\n"), language,
			)
		}
	}

	span.SetAttributes(attribute.Bool("valid", false), attribute.Int("attempts", result.Attempts))
	return result
}

func (g *CodeGenerationStep) buildSystemPrompt(framework string, docContext []DocumentationResult) string {
	prompt := codegenSystemPrompt
	if framework != "" {
		guidance, ok := frameworkGuidance[framework]
		if !ok {
			guidance = fmt.Sprintf("Framework: %s\n- Follow %s best practices and conventions", framework, framework)
		}
		prompt += "\n\n" + guidance
	}
	if len(docContext) > 0 {
		prompt += "\n\nYou have access to relevant framework documentation excerpts. Use these as reference for best practices and patterns."
	}
	return prompt
}

func buildUserPrompt(prompt string, docContext []DocumentationResult) string {
	if len(docContext) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString("=== Relevant Documentation ===\n")
	for i, doc := range docContext {
		if i >= maxContextDocs {
			break
		}
		content := doc.Content
		if len(content) > maxContextChars {
			content = content[:maxContextChars] + "..."
		}
		fmt.Fprintf(&b, "\n[Example %d from %s - %s]\n%s\n", i+1, doc.Framework, doc.Source, content)
	}
	b.WriteString("\n=== End Documentation ===\n\n")
	b.WriteString("Based on the documentation above, please generate the requested code:\n\n")
	b.WriteString(prompt)
	return b.String()
}

func docSources(docContext []DocumentationResult) []string {
	if len(docContext) == 0 {
		return nil
	}
	sources := make([]string, 0, len(docContext))
	seen := make(map[string]struct{}, len(docContext))
	for _, doc := range docContext {
		if doc.Source == "" {
			continue
		}
		if _, dup := seen[doc.Source]; dup {
			continue
		}
		seen[doc.Source] = struct{}{}
		sources = append(sources, doc.Source)
	}
	return sources
}

// StripCodeFences isolates raw code from a markdown-fenced response. The
// first fenced block wins; a leading language identifier line is dropped.
// Unfenced responses are returned trimmed.
func StripCodeFences(text string) string {
	if !strings.Contains(text, "```") {
		return strings.TrimSpace(text)
	}

	parts := strings.Split(text, "```")
	if len(parts) < 3 {
		return strings.TrimSpace(text)
	}

	block := parts[1]
	if idx := strings.Index(block, "\n"); idx >= 0 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "{}();") {
			block = block[idx+1:]
		}
	}
	return strings.TrimSpace(block)
}
