// Package expression implements the FlowExpression base behavior shared by
// every concrete expression kind: lifecycle, tree propagation, variable
// scoping, tags, handlers, timeouts and persistence.
package expression

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/smilemakc/flowexpr/internal/domain"
)

// substitutionPattern matches ${expression} placeholders, as the teacher's
// TemplateProcessor does for its expression-style templating.
var substitutionPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Condition is the shared `if`/`unless` guard predicate (spec.md §4.1 step
// 1) and `${…}` attribute substitution (§4.3). It compiles and caches
// expr-lang programs the way the teacher's ConditionEvaluator/
// TemplateProcessor do.
type Condition struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewCondition returns a Condition with an empty program cache.
func NewCondition() *Condition {
	return &Condition{cache: make(map[string]*vm.Program)}
}

func (c *Condition) compile(src string) (*vm.Program, error) {
	c.mu.RLock()
	program, ok := c.cache[src]
	c.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(src, expr.AsAny())
	if err != nil {
		return nil, domain.NewError(domain.ErrCodeInvalidInput,
			fmt.Sprintf("failed to compile expression %q", src), err)
	}

	c.mu.Lock()
	c.cache[src] = program
	c.mu.Unlock()
	return program, nil
}

// Substitute replaces every ${expression} placeholder in s with the
// stringified result of evaluating it against the workitem fields. Eval
// applies it to the `if`/`unless` guard strings before evaluating them;
// the base does not substitute any other attribute.
func (c *Condition) Substitute(s string, fields map[string]any) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	result := s
	for _, match := range substitutionPattern.FindAllStringSubmatch(s, -1) {
		placeholder, exprSrc := match[0], match[1]
		program, err := c.compile(exprSrc)
		if err != nil {
			return "", err
		}
		value, err := expr.Run(program, fields)
		if err != nil {
			return "", domain.NewError(domain.ErrCodeInvalidInput,
				fmt.Sprintf("failed to evaluate %q", exprSrc), err)
		}
		result = strings.ReplaceAll(result, placeholder, fmt.Sprint(value))
	}
	return result, nil
}

// Truthy evaluates a guard string (an `if` or `unless` attribute value,
// already `${…}`-substituted) using ruote-style loose truthiness. The
// empty string and "false" are falsy and "true" is truthy, by plain string
// comparison. Any other guard is compiled as an expr-lang expression and
// run against the workitem fields: a boolean result is used as is, any
// other non-nil result is truthy and a nil result (such as an identifier
// that is not a field) is falsy. A guard that does not compile is truthy;
// a guard that compiles but fails to run returns an error.
func (c *Condition) Truthy(guard string, fields map[string]any) (bool, error) {
	switch guard {
	case "", "false":
		return false, nil
	case "true":
		return true, nil
	}

	program, err := c.compile(guard)
	if err != nil {
		// Not a valid expression: treat as a bare truthy string, matching
		// ruote's "anything but nil/false/'false' is truthy".
		return true, nil
	}
	result, err := expr.Run(program, fields)
	if err != nil {
		return false, domain.NewError(domain.ErrCodeInvalidInput,
			fmt.Sprintf("failed to evaluate guard %q", guard), err)
	}
	if b, ok := result.(bool); ok {
		return b, nil
	}
	return result != nil, nil
}

// Eval is the full do_apply step-1 guard check: substitute then evaluate
// `if`/`unless`. Returns true when the expression should proceed to apply,
// false when it should reply immediately without transitioning.
func (c *Condition) Eval(ifAttr, unlessAttr string, fields map[string]any) (bool, error) {
	proceed := true

	if ifAttr != "" {
		sub, err := c.Substitute(ifAttr, fields)
		if err != nil {
			return false, err
		}
		proceed, err = c.Truthy(sub, fields)
		if err != nil {
			return false, err
		}
	}

	if proceed && unlessAttr != "" {
		sub, err := c.Substitute(unlessAttr, fields)
		if err != nil {
			return false, err
		}
		unless, err := c.Truthy(sub, fields)
		if err != nil {
			return false, err
		}
		proceed = !unless
	}

	return proceed, nil
}
