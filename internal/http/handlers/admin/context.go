package admin

import (
	handlershared "github.com/hustbill/nodejs-api-server-sub001/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getOperatorID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "user_id")
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondOrderError(c *gin.Context, err error) {
	handlershared.RespondOrderError(c, err)
}
