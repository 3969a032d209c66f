// Package httpapi exposes the access service over HTTP with basic auth.
//
// Administrative routes live under /admin and require administrator
// credentials; /user routes act on the caller's own account.
package httpapi
