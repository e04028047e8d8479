// Package middleware adapts the engine's request authenticator to net/http.
//
// [Guard] reads the access and refresh tokens from cookies or headers, calls
// Engine.AuthenticateRequest and stores the result on the request context.
// A request accepted on its refresh token gets a renewed access cookie.
// [RequireMember] then refuses anonymous requests on member-only routes.
//
// Token decisions are made by the engine; this package only moves tokens
// between HTTP and the engine.
package middleware
