package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	config "github.com/charitychain/charitychain-api/config"
	middleware "github.com/charitychain/charitychain-api/middleware"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
)

func reqCtx(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

func message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

// serverError logs err and answers 500. The error text is only exposed in
// development.
func serverError(c *gin.Context, cfg *config.Config, msg string, err error) {
	cfg.Logger.Error(msg,
		zap.Error(err),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("path", c.FullPath()))
	body := gin.H{"message": "Server error"}
	if cfg.IsDevelopment() {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

func bindJSON(c *gin.Context, dst any, requiredMsg string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		message(c, http.StatusBadRequest, bindingMessage(err, requiredMsg))
		return false
	}
	return true
}

// paramID parses the :id path parameter. A malformed id cannot match any
// document, so it is answered with notFound.
func paramID(c *gin.Context, notFound string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		message(c, http.StatusNotFound, notFound)
		return primitive.NilObjectID, false
	}
	return id, true
}
