package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"tailorcv/internal/api/middleware"
	"tailorcv/internal/errcode"
	"tailorcv/internal/resume"
	"tailorcv/internal/tailor"
)

const (
	cvMaxBytes = 10 << 20

	// 每用户每分钟允许的生成请求数，挡住误触发的连点。
	generateBurstLimit  = 5
	generateBurstWindow = time.Minute
)

// aiQuotaGate 在模型调用前原子占用一次 AI 生成额度。
type aiQuotaGate interface {
	IncrementAIGenerationCount(ctx context.Context, userID uint) (bool, error)
}

// generateModel 是 LLM 客户端在本层用到的切面。
type generateModel interface {
	GenerateCoverLetter(ctx context.Context, userID uint, resumeData, jobDescription, additionalInfo string) (string, error)
	GenerateHRMessage(ctx context.Context, userID uint, resumeData, jobDescription, recruiterName, additionalInfo string) (string, error)
}

// GenerateHandler 暴露 AI 生成相关端点：简历定制、求职信、HR 私信。
// 三个端点都先过额度闸门，免费额度用尽时直接 403，不触发模型调用。
type GenerateHandler struct {
	tailor      *tailor.Service
	llm         generateModel
	resumes     *resume.Service
	gate        aiQuotaGate
	redisClient *redis.Client
	clamdAddr   string
}

func NewGenerateHandler(
	tailorService *tailor.Service,
	llmClient generateModel,
	resumeService *resume.Service,
	gate aiQuotaGate,
	redisClient *redis.Client,
	clamdAddr string,
) *GenerateHandler {
	return &GenerateHandler{
		tailor:      tailorService,
		llm:         llmClient,
		resumes:     resumeService,
		gate:        gate,
		redisClient: redisClient,
		clamdAddr:   clamdAddr,
	}
}

// consumeAIQuota 占用一个额度并在失败时写好响应，调用方只需提前返回。
func (h *GenerateHandler) consumeAIQuota(c *gin.Context, userID uint) bool {
	ok, err := h.gate.IncrementAIGenerationCount(c.Request.Context(), userID)
	if err != nil {
		Internal(c, "failed to check usage")
		return false
	}
	if !ok {
		RespondDomainError(c, errcode.ErrAIQuotaExceeded)
		return false
	}
	return true
}

// GenerateResume 接收 multipart 的 CV 文件与职位描述，走完整定制管线。
func (h *GenerateHandler) GenerateResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	if !h.allowGenerate(c, userID) {
		RespondDomainError(c, errcode.ErrRateLimited)
		return
	}

	jobDescription := c.PostForm("job_description")
	if jobDescription == "" {
		BadRequest(c, "missing job_description")
		return
	}

	input := tailor.GenerateInput{
		JobDescription:  jobDescription,
		AdditionalInfo:  c.PostForm("additional_info"),
		PreAnalyzedText: c.PostForm("pre_analyzed_text"),
	}

	if file, err := c.FormFile("cv_file"); err == nil {
		data, mimeType, readErr := h.readUpload(file, cvMaxBytes)
		if readErr != nil {
			BadRequest(c, readErr.Error())
			return
		}
		input.CVData = data
		input.CVMIMEType = mimeType
	} else if input.PreAnalyzedText == "" {
		BadRequest(c, "missing cv_file")
		return
	}

	if file, err := c.FormFile("photo"); err == nil {
		data, _, readErr := h.readUpload(file, photoMaxBytes)
		if readErr != nil {
			BadRequest(c, readErr.Error())
			return
		}
		processed, procErr := processPhoto(data)
		if procErr != nil {
			BadRequest(c, "unsupported image format")
			return
		}
		input.PhotoData = processed
	}

	if !h.consumeAIQuota(c, userID) {
		return
	}

	input.CorrelationID = middleware.GetCorrelationID(c)
	log := middleware.LoggerFromContext(c)
	resumeID, err := h.tailor.Generate(c.Request.Context(), userID, input)
	if err != nil {
		log.Warn("resume generation failed", "error", err)
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"resume_id": resumeID})
}

type coverLetterRequest struct {
	ResumeID       uint   `json:"resume_id" binding:"required"`
	JobDescription string `json:"job_description"`
	AdditionalInfo string `json:"additional_info"`
}

// GenerateCoverLetter 基于已保存的简历与职位描述产出求职信文本。
func (h *GenerateHandler) GenerateCoverLetter(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req coverLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	resumeJSON, jobDescription, err := h.resumeContext(c, userID, req.ResumeID, req.JobDescription)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	if !h.consumeAIQuota(c, userID) {
		return
	}

	letter, err := h.llm.GenerateCoverLetter(c.Request.Context(), userID, resumeJSON, jobDescription, req.AdditionalInfo)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cover_letter": letter})
}

type hrMessageRequest struct {
	ResumeID       uint   `json:"resume_id" binding:"required"`
	JobDescription string `json:"job_description"`
	RecruiterName  string `json:"recruiter_name"`
	AdditionalInfo string `json:"additional_info"`
}

// GenerateHRMessage 产出面向招聘者的简短开场私信。
func (h *GenerateHandler) GenerateHRMessage(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req hrMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	resumeJSON, jobDescription, err := h.resumeContext(c, userID, req.ResumeID, req.JobDescription)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	if !h.consumeAIQuota(c, userID) {
		return
	}

	message, err := h.llm.GenerateHRMessage(c.Request.Context(), userID, resumeJSON, jobDescription, req.RecruiterName, req.AdditionalInfo)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// resumeContext 取出简历数据序列化给模型。请求未带职位描述时回落到
// 简历上保存的那份。
func (h *GenerateHandler) resumeContext(c *gin.Context, userID, resumeID uint, jobDescription string) (string, string, error) {
	target, err := h.resumes.Get(c.Request.Context(), userID, resumeID)
	if err != nil {
		return "", "", err
	}

	data := resume.DataFromModel(target)
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", "", err
	}

	if jobDescription == "" {
		jobDescription = target.JobDescription
	}
	return string(encoded), jobDescription, nil
}

func (h *GenerateHandler) allowGenerate(c *gin.Context, userID uint) bool {
	if h.redisClient == nil {
		return true
	}
	key := fmt.Sprintf("ratelimit:generate:%d", userID)
	count, err := incrWithTTL(c.Request.Context(), h.redisClient, key, generateBurstWindow)
	if err != nil {
		// Redis 故障时放行，配额闸门仍然兜底。
		middleware.LoggerFromContext(c).Warn("generate rate limit check failed", "error", err)
		return true
	}
	return count <= generateBurstLimit
}

func (h *GenerateHandler) readUpload(file *multipart.FileHeader, maxBytes int64) ([]byte, string, error) {
	if file.Size > maxBytes {
		return nil, "", fmt.Errorf("file too large")
	}

	reader, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file")
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("file too large")
	}

	if h.clamdAddr != "" {
		if err := scanBytes(h.clamdAddr, data); err != nil {
			return nil, "", fmt.Errorf("malicious file detected")
		}
	}

	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
