package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func childIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("child_id"))
	if id == "" {
		badRequest(c, "invalid_child_id", fmt.Errorf("missing child_id"))
		return "", false
	}
	return id, true
}

func uuidParam(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, code, err)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt returns def when the parameter is absent and false after writing a 400 when it is malformed.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "invalid_"+name, fmt.Errorf("%s must be a non-negative integer", name))
		return 0, false
	}
	return n, true
}
