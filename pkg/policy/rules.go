package policy

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/matzehuels/compgraph/pkg/component"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

// Rule denies a proposal when its CEL condition evaluates to true.
//
// Conditions see these variables:
//
//	action       string        "create", "add_children", "remove_children", "reorder"
//	subject      string        id of the node being changed ("" for create)
//	kind         string        type of the subject, or of the node being created
//	owner        string        owner of the subject, or of the node being created
//	children     list(string)  ids of the nodes involved in the change
//	child_kinds  list(string)  their types, in the same order
//
// Example:
//
//	[[policy.rules]]
//	when = 'action == "add_children" && kind == "note"'
//	message = "notes cannot contain children"
type Rule struct {
	When    string `mapstructure:"when" toml:"when"`
	Message string `mapstructure:"message" toml:"message"`
}

type compiledRule struct {
	rule Rule
	prg  cel.Program
}

// Rules is a PolicyGate backed by compiled CEL rules.
type Rules struct {
	rules []compiledRule
}

// NewRules compiles rules. A rule that does not compile fails with
// INVALID_INPUT naming the offending expression.
func NewRules(rules []Rule) (*Rules, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("subject", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("owner", cel.StringType),
		cel.Variable("children", cel.ListType(cel.StringType)),
		cel.Variable("child_kinds", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInternal, err, "build policy environment")
	}

	out := &Rules{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		ast, iss := env.Compile(r.When)
		if iss != nil && iss.Err() != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeInvalidInput, iss.Err(), "compile policy rule %q", r.When)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "plan policy rule %q", r.When)
		}
		out.rules = append(out.rules, compiledRule{rule: r, prg: prg})
	}
	return out, nil
}

// Len returns the number of rules.
func (r *Rules) Len() int { return len(r.rules) }

// Decide evaluates the rules in order. A rule that fails to evaluate, or
// yields a non-boolean, denies the proposal.
func (r *Rules) Decide(ctx context.Context, p component.Proposal) component.Decision {
	if len(r.rules) == 0 {
		return component.Allow
	}
	vars := activation(p)
	for _, cr := range r.rules {
		out, _, err := cr.prg.ContextEval(ctx, vars)
		if err != nil {
			return component.Deny(fmt.Sprintf("policy rule %q failed: %v", cr.rule.When, err))
		}
		deny, ok := out.Value().(bool)
		if !ok {
			return component.Deny(fmt.Sprintf("policy rule %q is not a condition", cr.rule.When))
		}
		if deny {
			msg := cr.rule.Message
			if msg == "" {
				msg = "denied by rule: " + cr.rule.When
			}
			return component.Deny(msg)
		}
	}
	return component.Allow
}

func activation(p component.Proposal) map[string]any {
	children := make([]any, 0, len(p.Children))
	kinds := make([]any, 0, len(p.Children))
	for _, c := range p.Children {
		children = append(children, c.ID())
		kinds = append(kinds, c.TypeID())
	}
	vars := map[string]any{
		"action":      string(p.Action),
		"subject":     "",
		"kind":        p.TypeID,
		"owner":       p.Owner,
		"children":    children,
		"child_kinds": kinds,
	}
	if p.Subject != nil {
		vars["subject"] = p.Subject.ID()
		vars["kind"] = p.Subject.TypeID()
		vars["owner"] = p.Subject.Owner()
	}
	return vars
}
