package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/platform/apierr"
	"github.com/yungbote/attendance-backend/internal/platform/ctxutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return uuid.Nil, apierr.BadRequest("invalid_"+name, fmt.Errorf("%s must be a uuid", name))
	}
	return id, nil
}

func uuidQuery(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Query(name)))
	if err != nil {
		return uuid.Nil, apierr.BadRequest("invalid_"+name, fmt.Errorf("%s must be a uuid", name))
	}
	return id, nil
}

// dateQuery parses a YYYY-MM-DD query value. An empty value yields def.
func dateQuery(c *gin.Context, name string, def time.Time) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	d, err := attendance.ParseDate(raw)
	if err != nil {
		return time.Time{}, apierr.BadRequest("invalid_"+name, err)
	}
	return d, nil
}

func rangeQuery(c *gin.Context) (attendance.DateRange, error) {
	from, err := dateQuery(c, "from", time.Time{})
	if err != nil {
		return attendance.DateRange{}, err
	}
	to, err := dateQuery(c, "to", time.Time{})
	if err != nil {
		return attendance.DateRange{}, err
	}
	return attendance.NewDateRange(from, to), nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.BadRequest("invalid_"+name, fmt.Errorf("%s must be an integer", name))
	}
	return n, nil
}

func floatQuery(c *gin.Context, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apierr.BadRequest("invalid_"+name, fmt.Errorf("%s must be a number", name))
	}
	return f, nil
}

func pageQuery(c *gin.Context) (page, size int, err error) {
	if page, err = intQuery(c, "page", 0); err != nil {
		return 0, 0, err
	}
	if size, err = intQuery(c, "size", defaultPageSize); err != nil {
		return 0, 0, err
	}
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size, nil
}

func parseBodyDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	d, err := attendance.ParseDate(raw)
	if err != nil {
		return time.Time{}, apierr.BadRequest("invalid_date", err)
	}
	return d, nil
}

func parseBodyStatus(raw string) (attendance.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	s, err := attendance.ParseStatus(raw)
	if err != nil {
		return "", apierr.BadRequest("invalid_status", err)
	}
	return s, nil
}

// teacherFrom prefers an explicit id and falls back to the X-Teacher-Id header.
func teacherFrom(c *gin.Context, explicit *uuid.UUID) *uuid.UUID {
	if explicit != nil && *explicit != uuid.Nil {
		return explicit
	}
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil && rd.TeacherID != uuid.Nil {
		id := rd.TeacherID
		return &id
	}
	return nil
}

func errMissing(name string) error { return fmt.Errorf("%s is required", name) }
