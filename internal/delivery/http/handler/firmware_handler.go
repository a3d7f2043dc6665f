package handler

import (
	"errors"
	"net/http"
	"strconv"

	domainFirmware "firmware-ota-server/internal/domain/firmware"
	"firmware-ota-server/internal/logger"
	usecaseFirmware "firmware-ota-server/internal/usecase/firmware"
	appErrors "firmware-ota-server/pkg/errors"
	"firmware-ota-server/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type FirmwareHandler struct {
	service *usecaseFirmware.Service
}

func NewFirmwareHandler(service *usecaseFirmware.Service) *FirmwareHandler {
	return &FirmwareHandler{service: service}
}

func (h *FirmwareHandler) RegisterRoutes(router *gin.RouterGroup) {
	fw := router.Group("/firmware")
	{
		// Device/mobile routes, unauthenticated
		fw.GET("/latest", h.GetLatest)
		fw.GET("/download", h.Download)
		fw.POST("/report", h.ReportStatus)
	}
}

func (h *FirmwareHandler) RegisterAdminRoutes(router *gin.RouterGroup) {
	fw := router.Group("/firmware")
	{
		fw.POST("/upload", h.Upload)
		fw.GET("/reports", h.ListReports)
	}
}

func (h *FirmwareHandler) GetLatest(c *gin.Context) {
	meta, err := h.service.GetLatest(c.Request.Context())
	if err != nil {
		if errors.Is(err, domainFirmware.ErrNoFirmware) {
			utils.ErrorResponse(c, http.StatusNotFound, "No firmware available")
			return
		}
		logger.Error("Failed to resolve latest firmware", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get latest firmware")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Latest firmware retrieved successfully", meta)
}

// Download streams the active firmware binary. ServeContent gives the
// embedded clients range requests and If-Modified-Since for free, which
// matters on flaky links where an OTA pull gets resumed mid-file.
func (h *FirmwareHandler) Download(c *gin.Context) {
	artifact, err := h.service.OpenLatest(c.Request.Context())
	if err != nil {
		if errors.Is(err, domainFirmware.ErrNoFirmware) {
			utils.ErrorResponse(c, http.StatusNotFound, "No firmware available")
			return
		}
		logger.Error("Failed to open firmware for download", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to download firmware")
		return
	}
	defer artifact.File.Close()

	meta := artifact.Meta
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", `attachment; filename="`+meta.Filename+`"`)
	c.Header("X-Firmware-Version", meta.Version)
	c.Header("X-Firmware-Checksum", meta.Checksum)
	c.Header("X-Firmware-Size", strconv.FormatInt(meta.FileSize, 10))
	c.Header("ETag", `"`+meta.Checksum+`"`)

	http.ServeContent(c.Writer, c.Request, meta.Filename, meta.CreatedAt, artifact.File)
}

func (h *FirmwareHandler) Upload(c *gin.Context) {
	var req usecaseFirmware.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid upload form")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Firmware file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to read firmware file")
		return
	}
	defer file.Close()

	if user, ok := c.Get("admin_user"); ok {
		if name, ok := user.(string); ok {
			req.UploadedBy = &name
		}
	}

	meta, err := h.service.Upload(c.Request.Context(), &req, file)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Firmware "+meta.Version+" uploaded successfully", meta)
}

func (h *FirmwareHandler) writeUploadError(c *gin.Context, err error) {
	var appErr *appErrors.AppError

	switch {
	case errors.Is(err, domainFirmware.ErrInvalidVersion):
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid firmware version, expected e.g. 1.0.4")
	case errors.Is(err, domainFirmware.ErrFileTooLarge):
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Firmware file too large")
	case errors.Is(err, domainFirmware.ErrVersionExists),
		errors.Is(err, domainFirmware.ErrArtifactExists):
		utils.ErrorResponse(c, http.StatusConflict, "Firmware version already exists")
	case errors.As(err, &appErr):
		utils.ErrorResponse(c, http.StatusBadRequest, appErr.Message)
	default:
		logger.Error("Firmware upload failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to upload firmware")
	}
}

func (h *FirmwareHandler) ReportStatus(c *gin.Context) {
	var req usecaseFirmware.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	// default to the connection address when the device didn't self-report
	if req.IPAddress == nil || *req.IPAddress == "" {
		ip := c.ClientIP()
		if ip != "" {
			req.IPAddress = &ip
		}
	}

	if err := h.service.ReportStatus(c.Request.Context(), &req); err != nil {
		var appErr *appErrors.AppError
		switch {
		case errors.Is(err, domainFirmware.ErrInvalidReportStatus):
			utils.ErrorResponse(c, http.StatusBadRequest, "Status must be one of success, failed, in_progress")
		case errors.As(err, &appErr):
			utils.ErrorResponse(c, http.StatusBadRequest, appErr.Message)
		default:
			logger.Error("Failed to record OTA report", zap.Error(err))
			utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to report OTA status")
		}
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "OTA status reported successfully", nil)
}

func (h *FirmwareHandler) ListReports(c *gin.Context) {
	var req usecaseFirmware.ReportListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	list, err := h.service.ListReports(c.Request.Context(), &req)
	if err != nil {
		var appErr *appErrors.AppError
		if errors.As(err, &appErr) {
			utils.ErrorResponse(c, http.StatusBadRequest, appErr.Message)
			return
		}
		logger.Error("Failed to list OTA reports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get OTA reports")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Reports retrieved successfully", list)
}
