package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tailorcv/internal/database"
	"tailorcv/internal/errcode"
	"tailorcv/internal/resume"
	"tailorcv/internal/storage"
)

// ResumeHandler 负责处理与简历相关的 API 请求。
type ResumeHandler struct {
	service *resume.Service
	storage *storage.Client
}

// NewResumeHandler 构造 ResumeHandler。
func NewResumeHandler(service *resume.Service, storageClient *storage.Client) *ResumeHandler {
	return &ResumeHandler{
		service: service,
		storage: storageClient,
	}
}

var errInvalidResumeID = errors.New("invalid resume id")

type resumeListItem struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	JobTitle  string    `json:"job_title,omitempty"`
	HasPhoto  bool      `json:"has_photo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type resumeResponse struct {
	ID        uint              `json:"id"`
	Data      resume.ResumeData `json:"data"`
	PhotoKey  string            `json:"photo_key,omitempty"`
	CVFileKey string            `json:"cv_file_key,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func newResumeResponse(m *database.Resume) resumeResponse {
	return resumeResponse{
		ID:        m.ID,
		Data:      resume.DataFromModel(m),
		PhotoKey:  m.PhotoKey,
		CVFileKey: m.CVFileKey,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// CreateResume 保存一份新的简历，超过限额则提示升级。
func (h *ResumeHandler) CreateResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req resume.ResumeData
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	created, err := h.service.Create(c.Request.Context(), userID, req, "", "")
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newResumeResponse(created))
}

// ListResumes 列出用户全部简历。
func (h *ResumeHandler) ListResumes(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	resumes, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		Internal(c, "failed to list resumes")
		return
	}

	items := make([]resumeListItem, 0, len(resumes))
	for _, r := range resumes {
		items = append(items, resumeListItem{
			ID:        r.ID,
			Title:     r.Title,
			JobTitle:  r.JobTitle,
			HasPhoto:  r.PhotoKey != "",
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, items)
}

// GetResume 返回指定 ID 的完整简历。
func (h *ResumeHandler) GetResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	found, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, newResumeResponse(found))
}

// UpdateResume 整体覆盖指定简历，子记录随之重建。
func (h *ResumeHandler) UpdateResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	var req resume.ResumeData
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	updated, err := h.service.Update(c.Request.Context(), userID, id, req, nil, nil)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, newResumeResponse(updated))
}

// DuplicateResume 复制一份简历，标题自动追加 Copy 后缀。
func (h *ResumeHandler) DuplicateResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	duplicated, err := h.service.Duplicate(c.Request.Context(), userID, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newResumeResponse(duplicated))
}

// DeleteResume 删除简历及其附属文件。
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		RespondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type jobDescriptionRequest struct {
	JobDescription string `json:"job_description" binding:"required"`
}

// GetJobDescription 返回简历关联的职位描述。
func (h *ResumeHandler) GetJobDescription(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	target, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_description": target.JobDescription})
}

// SetJobDescription 更新简历关联的职位描述。
func (h *ResumeHandler) SetJobDescription(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	var req jobDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.service.SetJobDescription(c.Request.Context(), userID, id, req.JobDescription); err != nil {
		RespondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ClearJobDescription 清空简历关联的职位描述。
func (h *ResumeHandler) ClearJobDescription(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	if err := h.service.ClearJobDescription(c.Request.Context(), userID, id); err != nil {
		RespondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetCVFileLink 返回原始 CV 文件的临时下载链接。
func (h *ResumeHandler) GetCVFileLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	found, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if found.CVFileKey == "" {
		RespondDomainError(c, errcode.ErrNotFound)
		return
	}

	url, err := h.storage.GeneratePresignedURL(c.Request.Context(), found.CVFileKey, 15*time.Minute)
	if err != nil {
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GetPhotoLink 返回简历照片的临时访问链接。
func (h *ResumeHandler) GetPhotoLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseResumeID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid resume id")
		return
	}

	found, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if found.PhotoKey == "" {
		RespondDomainError(c, errcode.ErrNotFound)
		return
	}

	url, err := h.storage.GeneratePresignedURL(c.Request.Context(), found.PhotoKey, 15*time.Minute)
	if err != nil {
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func parseResumeID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidResumeID
	}
	return uint(id), nil
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}
