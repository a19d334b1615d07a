// Package jwt verifies the user tokens that authenticate billing requests.
//
// Tokens are HS256 JWTs issued by the identity service with the user id in
// the sub claim. Service wraps github.com/golang-jwt/jwt/v5 with the method,
// issuer and expiry checks applied; Middleware puts the verified claims in
// the request context, where UserID reads them back.
//
//	svc, err := jwt.New(cfg)
//	if err != nil {
//		return err
//	}
//	r.With(jwt.Middleware(svc)).Post("/subscriptions", create)
package jwt
