package utils

import (
	"strconv"
	"strings"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/gin-gonic/gin"
)

// ParseIDParam reads a positive integer path parameter.
func ParseIDParam(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Validation("Invalid " + name + " parameter").
			WithDetails(map[string]any{name: raw})
	}
	return uint(id), nil
}

// ParseUintQuery reads an optional positive integer query parameter.
func ParseUintQuery(c *gin.Context, name string) (*uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil, apperrors.Validation("Invalid " + name + " query parameter").
			WithDetails(map[string]any{name: raw})
	}
	id := uint(v)
	return &id, nil
}

// ParseIntQuery reads an optional non-negative integer query parameter.
func ParseIntQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.Validation("Invalid " + name + " query parameter").
			WithDetails(map[string]any{name: raw})
	}
	return v, nil
}
