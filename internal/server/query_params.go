package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
)

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

// bindPagination reads page_token and page_size. Clamping happens in the
// repositories.
func bindPagination(c *gin.Context) (pagination.Pagination, error) {
	size, err := parseOptionalInt(c.Query("page_size"))
	if err != nil || size < 0 {
		return pagination.Pagination{}, newValidationError("page_size", "invalid_page_size", "invalid value")
	}
	return pagination.Pagination{
		PageToken: strings.TrimSpace(c.Query("page_token")),
		PageSize:  size,
	}, nil
}
