package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func Root() gin.HandlerFunc {
	return func(c *gin.Context) {
		message(c, http.StatusOK, "CharityChain API is running")
	}
}

func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"message":   "Server is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		message(c, http.StatusNotFound, "Route not found")
	}
}
