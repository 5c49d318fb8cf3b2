// Package auth provides bearer-token authentication for cauldron-gateway.
//
// Callers present an HS256 JWT signed with auth.jwt_secret. The "sub" claim
// names the caller. An optional "user_id" claim binds the token to a single
// gateway user; handlers check it with Allowed before acting on that user's
// agents or sessions. Tokens without user_id are service tokens and may act
// for any user.
//
// When no secret is configured the middleware is not installed and every
// request is allowed.
//
//	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
//	handler = auth.HTTPAuthMiddleware(verifier, logger)(handler)
//
// Tokens are minted with "cauldron-gateway token --sub NAME [--user ID]".
package auth
