package controllers

import (
	"net/http"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/config"
	"github.com/atoz-auto/autoshop-api/utils"
	"github.com/gin-gonic/gin"
)

// HealthCheck handles GET /api/v1/health
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Autoshop API is running",
	})
}

// DatabaseStatus handles GET /api/v1/database/status and reports the
// migrated tables.
func DatabaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		utils.RespondError(c, apperrors.New(apperrors.KindInternal, "DATABASE_ERROR", "Database not initialised"))
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		utils.RespondError(c, apperrors.Wrap(apperrors.KindInternal, "DATABASE_ERROR", err, "Failed to get database instance"))
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		utils.RespondError(c, apperrors.Wrap(apperrors.KindInternal, "DATABASE_CONNECTION_ERROR", err, "Database connection failed"))
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		utils.RespondError(c, apperrors.Wrap(apperrors.KindInternal, "DATABASE_QUERY_ERROR", err, "Failed to query tables"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
