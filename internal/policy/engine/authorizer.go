// Package engine decides role-based access for the REST API. The production
// authorizer evaluates a Rego policy; StaticAuthorizer encodes the same rules in Go.
package engine

import (
	"context"
	"slices"
)

// Actions understood by the authorizers.
const (
	// ActionRole allows subjects whose role is in RequiredRoles.
	ActionRole = "role"
	// ActionSelf allows admins and the owner of the resource.
	ActionSelf = "self"
)

// Subject is the caller being authorized.
type Subject struct {
	ID   string
	Role string
}

// Request is one access decision.
type Request struct {
	Action        string
	Subject       Subject
	RequiredRoles []string
	OwnerID       string
}

// Authorizer decides whether a request is allowed.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (bool, error)
}

// StaticAuthorizer applies the built-in rules without a policy engine.
type StaticAuthorizer struct{}

// Authorize implements Authorizer.
func (StaticAuthorizer) Authorize(_ context.Context, req Request) (bool, error) {
	switch req.Action {
	case ActionRole:
		return slices.Contains(req.RequiredRoles, req.Subject.Role), nil
	case ActionSelf:
		if req.Subject.Role == "admin" {
			return true, nil
		}
		return req.Subject.ID != "" && req.Subject.ID == req.OwnerID, nil
	default:
		return false, nil
	}
}
