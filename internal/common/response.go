package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

func Fail(c *gin.Context, status, code int, msg string) {
	c.JSON(status, gin.H{"code": code, "message": msg})
}
