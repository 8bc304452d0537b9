package runner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmespath/go-jmespath"

	"stageq/internal/stats"
)

// CheckSpec describes one named assertion. Exactly one of the assertion
// fields must be set.
type CheckSpec struct {
	Name         string `json:"name" mapstructure:"name"`
	Status       int    `json:"status,omitempty" mapstructure:"status"`
	NotEmpty     bool   `json:"not_empty,omitempty" mapstructure:"not_empty"`
	BodyContains string `json:"body_contains,omitempty" mapstructure:"body_contains"`
	BodyPattern  string `json:"body_pattern,omitempty" mapstructure:"body_pattern"`
	JSONPath     string `json:"json_path,omitempty" mapstructure:"json_path"`
}

// DefaultChecks are the two assertions every run makes unless told otherwise.
func DefaultChecks() []CheckSpec {
	return []CheckSpec{
		{Name: "status is 200", Status: 200},
		{Name: "response is not empty", NotEmpty: true},
	}
}

// Response is what a check sees. Status is 0 and Body is nil when the
// request failed or timed out.
type Response struct {
	Status int
	Body   []byte
	Err    error
}

// Check is a compiled CheckSpec.
type Check struct {
	Name string
	fn   func(Response) bool
}

func (c Check) Eval(r Response) stats.CheckResult {
	return stats.CheckResult{Name: c.Name, Passed: c.fn(r)}
}

// CompileChecks validates specs and builds their predicates.
func CompileChecks(specs []CheckSpec) ([]Check, error) {
	seen := make(map[string]bool, len(specs))
	out := make([]Check, 0, len(specs))
	for i, spec := range specs {
		field := fmt.Sprintf("checks[%d]", i)
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, configErr(field, "check name is required")
		}
		if seen[name] {
			return nil, configErr(field, "duplicate check name %q", name)
		}
		seen[name] = true

		fn, err := compileCheck(field, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, Check{Name: name, fn: fn})
	}
	return out, nil
}

func compileCheck(field string, spec CheckSpec) (func(Response) bool, error) {
	set := 0
	var fn func(Response) bool

	if spec.Status != 0 {
		set++
		want := spec.Status
		fn = func(r Response) bool { return r.Err == nil && r.Status == want }
	}
	if spec.NotEmpty {
		set++
		fn = func(r Response) bool { return len(r.Body) > 0 }
	}
	if spec.BodyContains != "" {
		set++
		sub := spec.BodyContains
		fn = func(r Response) bool { return strings.Contains(string(r.Body), sub) }
	}
	if spec.BodyPattern != "" {
		set++
		re, err := regexp.Compile(spec.BodyPattern)
		if err != nil {
			return nil, &ConfigError{Field: field, Reason: "invalid body pattern", Err: err}
		}
		fn = func(r Response) bool { return re.Match(r.Body) }
	}
	if spec.JSONPath != "" {
		set++
		expr, err := jmespath.Compile(spec.JSONPath)
		if err != nil {
			return nil, &ConfigError{Field: field, Reason: "invalid json path", Err: err}
		}
		fn = func(r Response) bool {
			if len(r.Body) == 0 {
				return false
			}
			var doc interface{}
			if err := json.Unmarshal(r.Body, &doc); err != nil {
				return false
			}
			v, err := expr.Search(doc)
			if err != nil {
				return false
			}
			return truthy(v)
		}
	}

	switch set {
	case 0:
		return nil, configErr(field, "check %q has no assertion", spec.Name)
	case 1:
		return fn, nil
	default:
		return nil, configErr(field, "check %q sets %d assertions, want exactly one", spec.Name, set)
	}
}

// truthy follows JMESPath's notion of false values.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}
