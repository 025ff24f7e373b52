package delivery

import (
	"net/http"
	"strconv"

	"lead-responder/internal/conversation/domain"
	"lead-responder/internal/conversation/repository"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// InspectionHandler exposes read-only views over leads and conversation records.
type InspectionHandler struct {
	repo repository.ConversationRepository
}

func NewInspectionHandler(repo repository.ConversationRepository) *InspectionHandler {
	return &InspectionHandler{repo: repo}
}

// ListLeads returns leads, most recent interaction first
// GET /api/leads?limit=20&offset=0
func (h *InspectionHandler) ListLeads(c *gin.Context) {
	limit, offset := pagination(c)

	leads, err := h.repo.ListLeads(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leads":  leads,
		"limit":  limit,
		"offset": offset,
	})
}

// ListConversations returns conversation records, newest first
// GET /api/conversations?thread_id=&status=&direction=&limit=20&offset=0
func (h *InspectionHandler) ListConversations(c *gin.Context) {
	limit, offset := pagination(c)

	filter := domain.RecordFilter{
		ThreadID:  c.Query("thread_id"),
		Status:    domain.Status(c.Query("status")),
		Direction: domain.Direction(c.Query("direction")),
	}
	if filter.Direction != "" && filter.Direction != domain.DirectionInbound && filter.Direction != domain.DirectionOutbound {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be inbound or outbound"})
		return
	}

	records, err := h.repo.ListRecords(c.Request.Context(), filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": records,
		"limit":         limit,
		"offset":        offset,
	})
}

// GetThread returns a thread's records in chronological order
// GET /api/threads/:id
func (h *InspectionHandler) GetThread(c *gin.Context) {
	threadID := c.Param("id")

	records, err := h.repo.GetThreadHistory(c.Request.Context(), threadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Thread not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"thread_id": threadID,
		"records":   records,
	})
}

func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
