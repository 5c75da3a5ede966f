package claims

import "github.com/golang-jwt/jwt/v4"

// Service describes claims of a service-to-service token. The commerce
// platform presents one when it triggers the placement path.
type Service struct {
	jwt.RegisteredClaims
	Service string `json:"service"`
}
