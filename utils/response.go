package utils

import (
	"github.com/gin-gonic/gin"
)

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends a structured error response without a reason code
func JSONError(c *gin.Context, status int, err error, message string) {
	JSONRejection(c, status, err, message, "")
}

// JSONRejection sends a structured error response. reason is the machine-readable
// rejection code and is left out when empty.
func JSONRejection(c *gin.Context, status int, err error, message, reason string) {
	body := gin.H{
		"status":  status,
		"message": message,
		"error":   err.Error(),
	}
	if reason != "" {
		body["reason"] = reason
	}
	c.JSON(status, body)
}
