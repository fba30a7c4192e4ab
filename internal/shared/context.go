package shared

import "context"

type workspaceContextKey struct{}

// ContextWithWorkspace stores the tenant workspace id in context.
func ContextWithWorkspace(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceContextKey{}, workspaceID)
}

// WorkspaceFromContext extracts the tenant workspace id from context.
func WorkspaceFromContext(ctx context.Context) string {
	ws, _ := ctx.Value(workspaceContextKey{}).(string)
	return ws
}
