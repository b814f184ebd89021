// Package permission holds the access rules for the API as small composable policies.
//
// A handler lists the policies for an endpoint. Check runs the request-level
// part of every policy before the service is called; CheckObject runs the
// object-level part once the target record has been loaded.
package permission

import (
	"net/http"

	"github.com/sakif/snippets-api/internal/apperror"
)

// Request is what a policy needs to know about the incoming call.
// CallerID is empty for anonymous requests.
type Request struct {
	Method   string
	CallerID string
}

// FromHTTP builds a Request from r and the authenticated caller id.
func FromHTTP(r *http.Request, callerID string) Request {
	return Request{Method: r.Method, CallerID: callerID}
}

// Authenticated reports whether the request carries a known caller.
func (r Request) Authenticated() bool {
	return r.CallerID != ""
}

// Owned is a record with an owner.
type Owned interface {
	OwnerKey() string
}

// Policy decides whether a request may proceed.
type Policy interface {
	// Allow is evaluated before the target record is loaded.
	Allow(req Request) bool
	// AllowObject is evaluated against a loaded record.
	AllowObject(req Request, obj Owned) bool
}

// IsSafeMethod reports whether method only reads.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// IsAuthenticatedOrReadOnly lets anyone read and only authenticated callers write.
type IsAuthenticatedOrReadOnly struct{}

func (IsAuthenticatedOrReadOnly) Allow(req Request) bool {
	return IsSafeMethod(req.Method) || req.Authenticated()
}

func (IsAuthenticatedOrReadOnly) AllowObject(Request, Owned) bool { return true }

// IsOwnerOrReadOnly lets anyone read a record and only its owner change it.
type IsOwnerOrReadOnly struct{}

func (IsOwnerOrReadOnly) Allow(Request) bool { return true }

func (IsOwnerOrReadOnly) AllowObject(req Request, obj Owned) bool {
	if IsSafeMethod(req.Method) {
		return true
	}
	return req.Authenticated() && obj.OwnerKey() == req.CallerID
}

// IsAuthenticated admits authenticated callers whatever the method.
type IsAuthenticated struct{}

func (IsAuthenticated) Allow(req Request) bool { return req.Authenticated() }

func (IsAuthenticated) AllowObject(Request, Owned) bool { return true }

// Check runs the request-level rule of every policy.
// Anonymous callers get ErrUnauthorized; authenticated ones get ErrForbidden.
func Check(req Request, policies ...Policy) error {
	for _, p := range policies {
		if !p.Allow(req) {
			return deny(req)
		}
	}
	return nil
}

// CheckObject runs the object-level rule of every policy against obj.
func CheckObject(req Request, obj Owned, policies ...Policy) error {
	for _, p := range policies {
		if !p.AllowObject(req, obj) {
			return deny(req)
		}
	}
	return nil
}

func deny(req Request) error {
	if !req.Authenticated() {
		return apperror.Unauthorized("authentication credentials were not provided")
	}
	return apperror.Forbidden("you do not have permission to perform this action")
}
