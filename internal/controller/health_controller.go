package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthController reports process and dependency health.
type HealthController struct {
	mongoClient *mongo.Client
	redisClient *redis.Client
	startedAt   time.Time
	version     string
}

func NewHealthController(mongoClient *mongo.Client, redisClient *redis.Client, version string) *HealthController {
	return &HealthController{
		mongoClient: mongoClient,
		redisClient: redisClient,
		startedAt:   time.Now(),
		version:     version,
	}
}

func (c *HealthController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": c.version,
		"uptime":  time.Since(c.startedAt).String(),
	})
}

// Liveness only says the process is up; it never touches dependencies.
func (c *HealthController) Liveness(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness pings mongo and redis. A failing dependency makes the instance
// drop out of rotation instead of accepting webhooks it cannot settle.
func (c *HealthController) Readiness(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if err := c.mongoClient.Ping(checkCtx, nil); err != nil {
		checks["mongodb"] = err.Error()
		healthy = false
	} else {
		checks["mongodb"] = "ok"
	}

	if err := c.redisClient.Ping(checkCtx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, gin.H{"status": checks})
}
