package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/http/response"
	"github.com/yungbote/attendance-backend/internal/platform/apierr"
	"github.com/yungbote/attendance-backend/internal/services"
)

type AttendanceHandler struct {
	marking services.MarkingService
}

func NewAttendanceHandler(marking services.MarkingService) *AttendanceHandler {
	return &AttendanceHandler{marking: marking}
}

type markBody struct {
	StudentID uuid.UUID  `json:"student_id"`
	Date      string     `json:"date"`
	Status    string     `json:"status"`
	Note      string     `json:"note"`
	TeacherID *uuid.UUID `json:"teacher_id"`
}

func (b markBody) input(c *gin.Context) (services.MarkInput, error) {
	date, err := parseBodyDate(b.Date)
	if err != nil {
		return services.MarkInput{}, err
	}
	status, err := parseBodyStatus(b.Status)
	if err != nil {
		return services.MarkInput{}, err
	}
	return services.MarkInput{
		StudentID: b.StudentID,
		Date:      date,
		Status:    status,
		Note:      b.Note,
		TeacherID: teacherFrom(c, b.TeacherID),
	}, nil
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return false
	}
	return true
}

// POST /api/v1/attendance/mark
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var body markBody
	if !bindJSON(c, &body) {
		return
	}
	in, err := body.input(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	fact, err := h.marking.MarkOne(c.Request.Context(), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"fact": fact})
}

type bulkBody struct {
	TeacherID *uuid.UUID `json:"teacher_id"`
	Items     []markBody `json:"items"`
}

// POST /api/v1/attendance/bulk
func (h *AttendanceHandler) Bulk(c *gin.Context) {
	var body bulkBody
	if !bindJSON(c, &body) {
		return
	}
	reqs := make([]services.MarkInput, 0, len(body.Items))
	for _, item := range body.Items {
		in, err := item.input(c)
		if err != nil {
			response.RespondErr(c, err)
			return
		}
		// The batch teacher applies to every item.
		in.TeacherID = nil
		reqs = append(reqs, in)
	}
	res, err := h.marking.BulkMark(c.Request.Context(), reqs, teacherFrom(c, body.TeacherID))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": res})
}

type dailyBody struct {
	SchoolID         uuid.UUID   `json:"school_id"`
	Date             string      `json:"date"`
	AbsentStudentIDs []uuid.UUID `json:"absent_student_ids"`
	IsHoliday        bool        `json:"is_holiday"`
	TeacherID        *uuid.UUID  `json:"teacher_id"`
}

// POST /api/v1/attendance/daily
func (h *AttendanceHandler) Daily(c *gin.Context) {
	var body dailyBody
	if !bindJSON(c, &body) {
		return
	}
	date, err := parseBodyDate(body.Date)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	res, err := h.marking.MarkDailyRoster(c.Request.Context(), services.DailyRosterInput{
		SchoolID:         body.SchoolID,
		Date:             date,
		AbsentStudentIDs: body.AbsentStudentIDs,
		IsHoliday:        body.IsHoliday,
		TeacherID:        teacherFrom(c, body.TeacherID),
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": res})
}

type holidayBody struct {
	SchoolID uuid.UUID `json:"school_id"`
	Date     string    `json:"date"`
	Reason   string    `json:"reason"`
}

// POST /api/v1/attendance/holiday
func (h *AttendanceHandler) Holiday(c *gin.Context) {
	var body holidayBody
	if !bindJSON(c, &body) {
		return
	}
	date, err := parseBodyDate(body.Date)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	res, err := h.marking.MarkHoliday(c.Request.Context(), body.SchoolID, date, body.Reason)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": res})
}

// PUT /api/v1/attendance/:id
func (h *AttendanceHandler) Correct(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	var body markBody
	if !bindJSON(c, &body) {
		return
	}
	in, err := body.input(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	fact, err := h.marking.Correct(c.Request.Context(), id, in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"fact": fact})
}

// DELETE /api/v1/attendance/:id
func (h *AttendanceHandler) Delete(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if err := h.marking.DeleteFact(c.Request.Context(), id); err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/attendance/exists?student_id&date
func (h *AttendanceHandler) Exists(c *gin.Context) {
	studentID, err := uuidQuery(c, "student_id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	date, err := dateQuery(c, "date", time.Time{})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if date.IsZero() {
		response.RespondErr(c, apierr.BadRequest("invalid_date", errMissing("date")))
		return
	}
	ok, err := h.marking.RecordExists(c.Request.Context(), studentID, date)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"exists": ok})
}

// GET /api/v1/attendance?from&to&page&size
func (h *AttendanceHandler) List(c *gin.Context) {
	r, err := rangeQuery(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	page, size, err := pageQuery(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.marking.ListFacts(c.Request.Context(), r, page, size)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}
