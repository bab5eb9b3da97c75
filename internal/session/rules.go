package session

import (
	"context"
	"fmt"
	"strings"
)

// Responder produces the reply to one request.
type Responder interface {
	Respond(ctx context.Context, request string) string
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, request string) string

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, request string) string {
	return f(ctx, request)
}

// Rule maps a keyword to a canned reply.
type Rule struct {
	Keyword string
	Reply   string
}

// RuleTable answers a request with the reply of the first rule whose
// keyword occurs in it, ignoring case.  Order matters: "help with my
// order" matches "order" because that rule comes first.
type RuleTable struct {
	Rules []Rule
}

// DefaultRules is the customer-service table: order, refund, help.
// The order is kept for compatibility with existing clients.
func DefaultRules() *RuleTable {
	return &RuleTable{Rules: []Rule{
		{Keyword: "order", Reply: "I will check your order. Please wait...."},
		{Keyword: "refund", Reply: "I will process refund immediately...."},
		{Keyword: "help", Reply: "Available services: Order status, refund, product info"},
	}}
}

// Match returns the first rule matching request.
func (t *RuleTable) Match(request string) (Rule, bool) {
	lower := strings.ToLower(request)
	for _, r := range t.Rules {
		if r.Keyword != "" && strings.Contains(lower, strings.ToLower(r.Keyword)) {
			return r, true
		}
	}
	return Rule{}, false
}

// Respond implements Responder.
func (t *RuleTable) Respond(_ context.Context, request string) string {
	if r, ok := t.Match(request); ok {
		return r.Reply
	}
	return Acknowledge(request)
}

// Acknowledge is the reply for requests no rule matches.
func Acknowledge(request string) string {
	return fmt.Sprintf("Thank you for message: %s. Our team will connect soon.", strings.TrimSpace(request))
}
