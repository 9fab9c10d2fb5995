package utils

import (
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// CurrentUserID extracts the authenticated user's ID from the verified
// access token. Handlers pass this ID explicitly into every service
// operation; services never reach back into request state.
func CurrentUserID(ctx iris.Context) uint {
	claims := jwt.Get(ctx).(*AccessToken)
	return claims.ID
}
