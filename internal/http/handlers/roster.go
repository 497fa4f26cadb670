package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/http/response"
)

// RosterDirectory lists a school's class structure.
type RosterDirectory interface {
	ListStandards(ctx context.Context, schoolID uuid.UUID) ([]string, error)
	ListSections(ctx context.Context, schoolID uuid.UUID, standard string) ([]string, error)
	CountStudentsByClass(ctx context.Context, schoolID uuid.UUID, standard string, section *string) (int64, error)
}

// RosterInvalidator drops cached roster data after an external roster change.
type RosterInvalidator interface {
	InvalidateSchool(ctx context.Context, schoolID uuid.UUID)
}

type RosterHandler struct {
	dir RosterDirectory
	inv RosterInvalidator
}

func NewRosterHandler(dir RosterDirectory, inv RosterInvalidator) *RosterHandler {
	return &RosterHandler{dir: dir, inv: inv}
}

type classSection struct {
	Section  string `json:"section"`
	Students int64  `json:"students"`
}

type classStandard struct {
	Standard string         `json:"standard"`
	Students int64          `json:"students"`
	Sections []classSection `json:"sections"`
}

// GET /api/v1/attendance/schools/:id/classes
func (h *RosterHandler) Classes(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	ctx := c.Request.Context()
	standards, err := h.dir.ListStandards(ctx, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out := make([]classStandard, 0, len(standards))
	for _, std := range standards {
		total, err := h.dir.CountStudentsByClass(ctx, id, std, nil)
		if err != nil {
			response.RespondErr(c, err)
			return
		}
		sections, err := h.dir.ListSections(ctx, id, std)
		if err != nil {
			response.RespondErr(c, err)
			return
		}
		entry := classStandard{Standard: std, Students: total, Sections: make([]classSection, 0, len(sections))}
		for _, sec := range sections {
			n, err := h.dir.CountStudentsByClass(ctx, id, std, &sec)
			if err != nil {
				response.RespondErr(c, err)
				return
			}
			entry.Sections = append(entry.Sections, classSection{Section: sec, Students: n})
		}
		out = append(out, entry)
	}
	response.RespondOK(c, gin.H{"school_id": id, "classes": out})
}

// POST /api/v1/attendance/schools/:id/roster-refresh
func (h *RosterHandler) Refresh(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if h.inv != nil {
		h.inv.InvalidateSchool(c.Request.Context(), id)
	}
	c.Status(http.StatusNoContent)
}
