package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims issued at login.
// A client may present this token at the WebSocket upgrade to resume its identity
// after a transport drop without replaying credentials.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// Nickname is the unique account identifier the token resumes.
	Nickname string `json:"nickname"`

	// IsAdmin mirrors the account's admin flag at issue time. The authoritative
	// flag is always re-read from storage on resume; this claim only lets the
	// client render its UI before the resumed state arrives.
	IsAdmin bool `json:"is_admin"`
}
