// Package agrobase implements the auth.Provider boundary against the hosted
// backend-as-a-service auth API (GoTrue-style REST endpoints). It owns the
// wire shapes: everything it returns is mapped into the explicit records the
// root package depends on, and provider failures are normalized into the
// shared error taxonomy at this boundary.
package agrobase
