package runner

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"
)

// TemplateEngine handles parsing and executing payload templates
type TemplateEngine struct {
	fileCache map[string][]string
	mu        sync.RWMutex
	funcMap   template.FuncMap
}

// TemplateData is passed to the execution context
type TemplateData struct {
	UserID    string
	UUID      string
	Iteration string
}

// NewTemplateEngine initializes the engine and its functions
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		fileCache: make(map[string][]string),
	}

	e.funcMap = template.FuncMap{
		"randomInt":    e.randomInt,
		"randomUUID":   e.randomUUID,
		"randomChoice": e.randomChoice,
		"randomLine":   e.randomLine,
		"uuid":         e.randomUUID, // Alias
	}

	return e
}

// Preprocess converts simple variables {{userID}} to Go template syntax {{.UserID}}
func (e *TemplateEngine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{userID}}", "{{.UserID}}")
	s = strings.ReplaceAll(s, "{{uuid}}", "{{.UUID}}")
	s = strings.ReplaceAll(s, "{{requestID}}", "{{.UUID}}")
	s = strings.ReplaceAll(s, "{{iteration}}", "{{.Iteration}}")
	return s
}

// Parse creates a new template with the engine's functions
func (e *TemplateEngine) Parse(name, text string) (*template.Template, error) {
	readyText := e.Preprocess(text)
	return template.New(name).Funcs(e.funcMap).Option("missingkey=error").Parse(readyText)
}

// Execute runs the template with data
func (e *TemplateEngine) Execute(t *template.Template, data TemplateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Payload is a compiled request body. Static bodies skip template execution.
type Payload struct {
	engine *TemplateEngine
	tmpl   *template.Template
	static []byte
}

// CompilePayload parses text and renders it once with sample data; the
// result must be valid JSON. An empty payload becomes "{}".
func CompilePayload(e *TemplateEngine, text string) (*Payload, error) {
	if strings.TrimSpace(text) == "" {
		text = "{}"
	}
	if !strings.Contains(text, "{{") {
		if !json.Valid([]byte(text)) {
			return nil, configErr("payload", "not valid JSON")
		}
		return &Payload{static: []byte(text)}, nil
	}

	t, err := e.Parse("payload", text)
	if err != nil {
		return nil, &ConfigError{Field: "payload", Reason: "template does not parse", Err: err}
	}
	p := &Payload{engine: e, tmpl: t}
	sample, err := p.Render(0, 0)
	if err != nil {
		return nil, &ConfigError{Field: "payload", Reason: "template does not render", Err: err}
	}
	if !json.Valid(sample) {
		return nil, configErr("payload", "rendered template is not valid JSON: %s", sample)
	}
	return p, nil
}

// Render produces the body for one iteration of one virtual user.
func (p *Payload) Render(userID int, iteration uint64) ([]byte, error) {
	if p.tmpl == nil {
		return p.static, nil
	}
	return p.engine.Execute(p.tmpl, TemplateData{
		UserID:    strconv.Itoa(userID),
		UUID:      uuid.New().String(),
		Iteration: strconv.FormatUint(iteration, 10),
	})
}

// --- Functions ---

func (e *TemplateEngine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func (e *TemplateEngine) randomUUID() string {
	return uuid.New().String()
}

func (e *TemplateEngine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}

func (e *TemplateEngine) randomLine(filename string) (string, error) {
	e.mu.RLock()
	lines, ok := e.fileCache[filename]
	e.mu.RUnlock()

	if ok {
		return pick(lines), nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if lines, ok = e.fileCache[filename]; ok {
		return pick(lines), nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to read file '%s': %w", filename, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	var loaded []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			loaded = append(loaded, line)
		}
	}

	e.fileCache[filename] = loaded
	return pick(loaded), nil
}

func pick(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[rand.Intn(len(lines))]
}
