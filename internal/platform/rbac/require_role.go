// Package rbac enforces role requirements on authenticated requests.
package rbac

import (
	"context"

	"chancafe-q/backend/internal/apperr"
	"chancafe-q/backend/internal/policy/engine"
	"chancafe-q/backend/internal/server/middleware"
	userdomain "chancafe-q/backend/internal/user/domain"
)

func requirePrincipal(ctx context.Context) (*middleware.Principal, error) {
	p, ok := middleware.PrincipalFromContext(ctx)
	if !ok || p.ID == "" {
		return nil, apperr.Unauthenticated(apperr.CodeAuthenticationRequired, "Autenticación requerida")
	}
	return p, nil
}

// RequireRole ensures the caller is authenticated and holds one of roles.
// Returns the principal on success; AUTHENTICATION_REQUIRED or INSUFFICIENT_PERMISSIONS otherwise.
func RequireRole(ctx context.Context, authz engine.Authorizer, roles ...userdomain.Role) (*middleware.Principal, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	required := make([]string, len(roles))
	for i, r := range roles {
		required[i] = string(r)
	}
	ok, err := authz.Authorize(ctx, engine.Request{
		Action:        engine.ActionRole,
		Subject:       engine.Subject{ID: p.ID, Role: string(p.Role)},
		RequiredRoles: required,
	})
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	if !ok {
		return nil, apperr.Forbidden(apperr.CodeInsufficientPermissions, "Permisos insuficientes").
			WithDetails(map[string]any{"requiredRoles": required, "userRole": string(p.Role)})
	}
	return p, nil
}

// RequireSelfOrAdmin ensures the caller is ownerID or an admin.
func RequireSelfOrAdmin(ctx context.Context, authz engine.Authorizer, ownerID string) (*middleware.Principal, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := authz.Authorize(ctx, engine.Request{
		Action:  engine.ActionSelf,
		Subject: engine.Subject{ID: p.ID, Role: string(p.Role)},
		OwnerID: ownerID,
	})
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	if !ok {
		return nil, apperr.Forbidden(apperr.CodeAccessDenied, "Acceso denegado")
	}
	return p, nil
}
