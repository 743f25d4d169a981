package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tailorcv/internal/resume"
)

// GroupHandler 管理简历分组。
type GroupHandler struct {
	service *resume.Service
}

func NewGroupHandler(service *resume.Service) *GroupHandler {
	return &GroupHandler{service: service}
}

type groupRequest struct {
	Name      string `json:"name" binding:"required"`
	ResumeIDs []uint `json:"resumeIds"`
}

// CreateGroup 新建分组。
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	group, err := h.service.CreateGroup(c.Request.Context(), userID, req.Name, req.ResumeIDs)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": group.ID, "name": group.Name})
}

// ListGroups 列出用户的全部分组。
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	groups, err := h.service.ListGroups(c.Request.Context(), userID)
	if err != nil {
		Internal(c, "failed to list groups")
		return
	}

	c.JSON(http.StatusOK, groups)
}

// UpdateGroup 重命名分组或整体替换成员列表。
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	groupID, err := parseGroupID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid group id")
		return
	}

	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.service.UpdateGroup(c.Request.Context(), userID, groupID, req.Name, req.ResumeIDs); err != nil {
		RespondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteGroup 删除分组，组内简历本身不受影响。
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	groupID, err := parseGroupID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid group id")
		return
	}

	if err := h.service.DeleteGroup(c.Request.Context(), userID, groupID); err != nil {
		RespondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseGroupID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidResumeID
	}
	return uint(id), nil
}
