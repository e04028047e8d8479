// Package jwt issues and verifies the RS256 access and refresh tokens used
// by almagestAuth, and decodes the base64 DER key material they are signed with.
//
// Access tokens carry {iss, sub, iat, exp}. Refresh tokens add the "vfs"
// verification claim, which must match the server-side record for the
// subject; that comparison lives in the root package, not here.
package jwt
