// Package validation valida nombres de scope de las aplicaciones registradas.
package validation

import "regexp"

// Un scope es lowercase, arranca y termina en [a-z0-9], y en el medio admite
// [a-z0-9:_.-]. Largo 1..64. Sin espacios (el separador del parámetro scope).
//
// Válidos: reports.read, user.profile.read, email:read, a_b-c.d
// Inválidos: "", .lead, trail., "bad space", UPPER, semicolon;hack
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName reporta si name es un nombre de scope aceptable.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// InvalidScopes devuelve los scopes que no pasan ValidScopeName, en orden.
func InvalidScopes(scopes []string) []string {
	var bad []string
	for _, s := range scopes {
		if !ValidScopeName(s) {
			bad = append(bad, s)
		}
	}
	return bad
}
