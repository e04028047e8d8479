// Package httpapi exposes the auth engine over HTTP.
//
// Public routes live under /api/auth/a1/v1 and member routes under
// /api/auth/a2/v1. Member routes run behind middleware.Guard and
// middleware.RequireMember. Every JSON response uses the Envelope shape.
package httpapi
