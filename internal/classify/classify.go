// Package classify decides whether a probe response indicates that the edge
// in front of a target was bypassed. Decisions come from an ordered chain of
// rules compared against a baseline captured once per scan.
package classify

import "github.com/maxvaer/wafpierce/internal/scanner"

// Rule inspects one aspect of a response. Match returns ok=false when the
// rule has no opinion and the next rule should run.
type Rule interface {
	Name() string
	Match(resp *scanner.Response, base *Baseline) (v scanner.Verdict, ok bool)
}

// Chain applies rules in order, short-circuiting on the first match.
type Chain struct {
	rules []Rule
}

// NewChain returns an empty rule chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends a rule to the chain.
func (c *Chain) Add(r Rule) {
	c.rules = append(c.rules, r)
}

// Apply runs the rules against resp and returns the first verdict plus the
// name of the rule that produced it. With no match the verdict is
// "identical to baseline".
func (c *Chain) Apply(resp *scanner.Response, base *Baseline) (scanner.Verdict, string) {
	for _, r := range c.rules {
		if v, ok := r.Match(resp, base); ok {
			return v, r.Name()
		}
	}
	return scanner.Verdict{Reason: "identical to baseline", Severity: scanner.SeverityInfo}, "default"
}

// DefaultChain returns the standard rule order. Earlier rules dominate later
// ones: a blocked status is never a bypass, and a status flip from 401/403
// to 200 outranks any size difference.
func DefaultChain() *Chain {
	c := NewChain()
	c.Add(blockedRule{})
	c.Add(authBypassRule{})
	c.Add(sizeRule{threshold: 10})
	c.Add(hashRule{minDelta: 100})
	c.Add(newBodyRule(errorIndicators))
	c.Add(serverRule{backends: backendServers})
	c.Add(poweredByRule{})
	c.Add(redirectRule{})
	return c
}

var defaultChain = DefaultChain()

// Classify evaluates resp against base with the default chain. It has no
// side effects; the same inputs always produce the same verdict.
func Classify(resp *scanner.Response, base *Baseline) scanner.Verdict {
	v, _ := defaultChain.Apply(resp, base)
	return v
}

// For binds base into a scanner.ClassifierFunc for the executor.
func For(base *Baseline) scanner.ClassifierFunc {
	return func(resp *scanner.Response) scanner.Verdict {
		return Classify(resp, base)
	}
}
