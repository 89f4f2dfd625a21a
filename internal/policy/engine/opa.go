package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.chancafe.authz.allow"

// DefaultPolicy is the Rego policy used when none is configured.
const DefaultPolicy = `package chancafe.authz

default allow := false

allow if {
	input.action == "role"
	input.subject.role in input.required_roles
}

allow if {
	input.action == "self"
	input.subject.role == "admin"
}

allow if {
	input.action == "self"
	input.subject.id != ""
	input.subject.id == input.owner_id
}
`

// OPAAuthorizer evaluates a Rego policy prepared once at construction.
type OPAAuthorizer struct {
	query rego.PreparedEvalQuery
}

// NewOPAAuthorizer compiles policy (DefaultPolicy when empty) and prepares the allow query.
func NewOPAAuthorizer(ctx context.Context, policy string) (*OPAAuthorizer, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	pq, err := rego.New(
		rego.Query(allowQuery),
		rego.Module("authz.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: prepare authz query: %w", err)
	}
	return &OPAAuthorizer{query: pq}, nil
}

// Authorize implements Authorizer. An undefined result denies.
func (a *OPAAuthorizer) Authorize(ctx context.Context, req Request) (bool, error) {
	rs, err := a.query.Eval(ctx, rego.EvalInput(inputOf(req)))
	if err != nil {
		return false, fmt.Errorf("policy: eval authz query: %w", err)
	}
	return rs.Allowed(), nil
}

// HealthCheck evaluates a request the default rules must allow.
func (a *OPAAuthorizer) HealthCheck(ctx context.Context) error {
	ok, err := a.Authorize(ctx, Request{Action: ActionSelf, Subject: Subject{ID: "health", Role: "agent"}, OwnerID: "health"})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("policy: health probe denied")
	}
	return nil
}

func inputOf(req Request) map[string]any {
	roles := make([]any, 0, len(req.RequiredRoles))
	for _, r := range req.RequiredRoles {
		roles = append(roles, r)
	}
	return map[string]any{
		"action": req.Action,
		"subject": map[string]any{
			"id":   req.Subject.ID,
			"role": req.Subject.Role,
		},
		"required_roles": roles,
		"owner_id":       req.OwnerID,
	}
}
