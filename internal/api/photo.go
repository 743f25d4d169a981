package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"golang.org/x/image/draw"
)

const (
	photoMaxBytes   = 5 << 20
	photoEdgePixels = 200
	photoQuality    = 85
)

// PhotoHandler 处理简历照片的上传与处理。照片统一裁切缩放为 200x200 JPEG
// 后入库，原图不保留。
type PhotoHandler struct {
	resumes   *ResumeHandler
	clamdAddr string
}

func NewPhotoHandler(resumes *ResumeHandler, clamdAddr string) *PhotoHandler {
	return &PhotoHandler{resumes: resumes, clamdAddr: clamdAddr}
}

// UploadPhoto 接收 multipart 照片，扫描、处理后挂到简历上。
// 内容未变化（哈希一致）时跳过重复上传。
func (h *PhotoHandler) UploadPhoto(c *gin.Context) {
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

	file, err := c.FormFile("photo")
	if err != nil {
		BadRequest(c, "missing photo")
		return
	}
	if file.Size > photoMaxBytes {
		BadRequest(c, "photo too large")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open photo")
		return
	}
	raw, err := io.ReadAll(io.LimitReader(reader, photoMaxBytes+1))
	reader.Close()
	if err != nil {
		Internal(c, "failed to read photo")
		return
	}
	if len(raw) > photoMaxBytes {
		BadRequest(c, "photo too large")
		return
	}

	if h.clamdAddr != "" {
		if err := scanBytes(h.clamdAddr, raw); err != nil {
			BadRequest(c, "malicious file detected")
			return
		}
	}

	processed, err := processPhoto(raw)
	if err != nil {
		BadRequest(c, "unsupported image format")
		return
	}

	ctx := c.Request.Context()
	target, err := h.resumes.service.Get(ctx, userID, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	digest := sha256.Sum256(processed)
	objectKey := fmt.Sprintf("user-photos/%d/%s.jpg", userID, hex.EncodeToString(digest[:16]))
	if target.PhotoKey == objectKey {
		c.JSON(http.StatusOK, gin.H{"photo_key": objectKey})
		return
	}

	if _, err := h.resumes.storage.UploadFile(ctx, objectKey, bytes.NewReader(processed), int64(len(processed)), "image/jpeg"); err != nil {
		Internal(c, "failed to upload photo")
		return
	}

	if err := h.resumes.service.SetPhotoKey(ctx, userID, id, objectKey); err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"photo_key": objectKey})
}

// processPhoto 解码任意支持格式，居中裁成正方形，缩放到目标边长并编码为
// JPEG。
func processPhoto(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	edge := bounds.Dx()
	if bounds.Dy() < edge {
		edge = bounds.Dy()
	}
	offsetX := bounds.Min.X + (bounds.Dx()-edge)/2
	offsetY := bounds.Min.Y + (bounds.Dy()-edge)/2
	cropRect := image.Rect(offsetX, offsetY, offsetX+edge, offsetY+edge)

	dst := image.NewRGBA(image.Rect(0, 0, photoEdgePixels, photoEdgePixels))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, cropRect, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: photoQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func scanBytes(clamdAddr string, data []byte) error {
	clamdClient := clamd.NewClamd(clamdAddr)

	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := clamdClient.ScanStream(bytes.NewReader(data), abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return fmt.Errorf("malicious content: %s", result.Description)
		}
	}
	return nil
}
