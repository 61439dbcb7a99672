// Package httpkit provides HTTP utilities including caller identity.
package httpkit

import (
	"github.com/gin-gonic/gin"
)

// Caller is the service that presented a token (scheduler, delivery worker, dashboard).
type Caller interface {
	// Subject returns the token subject.
	Subject() string
	// Scopes returns the granted scopes.
	Scopes() []string
	// HasScope checks if the caller was granted a scope.
	HasScope(scope string) bool
	// IsAuthenticated returns true if a token was verified.
	IsAuthenticated() bool
}

type caller struct {
	subject       string
	scopes        []string
	authenticated bool
}

func (c *caller) Subject() string  { return c.subject }
func (c *caller) Scopes() []string { return c.scopes }
func (c *caller) HasScope(scope string) bool {
	for _, s := range c.scopes {
		if s == scope || s == ScopeAll {
			return true
		}
	}
	return false
}
func (c *caller) IsAuthenticated() bool { return c.authenticated }

// GetCaller extracts the Caller from a Gin context.
// Returns an unauthenticated caller if no token was verified.
func GetCaller(c *gin.Context) Caller {
	subject, ok := c.Get(ContextSubjectKey)
	if !ok {
		return &caller{}
	}
	scopes, _ := c.Get(ContextScopesKey)
	scopeList, _ := scopes.([]string)
	name, _ := subject.(string)
	return &caller{subject: name, scopes: scopeList, authenticated: true}
}
