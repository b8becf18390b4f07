package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parkinghub/internal/config"
	"parkinghub/internal/domain/parking"
	"parkinghub/internal/service"
)

const (
	apiName    = "IoT Smart Parking API"
	apiVersion = "1.0.0"
)

type Handler struct {
	parkingService *service.ParkingService
	slotService    *service.SlotService
	config         *config.Config
	log            zerolog.Logger
}

func NewHandler(
	parkingService *service.ParkingService,
	slotService *service.SlotService,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		parkingService: parkingService,
		slotService:    slotService,
		config:         cfg,
		log:            log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.root)
	r.GET("/health", h.health)

	api := r.Group("/api/v1")
	{
		api.POST("/esp32/upload", h.uploadEntry)
		api.POST("/esp32/out-upload", h.uploadExit)

		api.POST("/parking-events", h.reportEvent)
		api.GET("/parking-events", h.listEvents)
		api.GET("/parking-events/:rfid_id", h.listEventsByRFID)

		api.GET("/parking-sessions", h.listSessions)

		api.GET("/parking-slots", h.listSlots)
		api.GET("/parking-slots/status", h.slotStatus)
		api.POST("/parking-slots", h.createSlot)
		api.PUT("/parking-slots/:id", h.updateSlot)
		api.DELETE("/parking-slots/:id", h.deleteSlot)
	}
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": apiName, "version": apiVersion})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// uploadEntry takes a multipart form with rfid_id and image, as sent by the ESP32-CAM.
func (h *Handler) uploadEntry(c *gin.Context) {
	rfid := strings.TrimSpace(c.PostForm("rfid_id"))
	if rfid == "" {
		c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "rfid_id is required"))
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "image file is required"))
		return
	}
	if fh.Size > h.config.Server.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "image is too large"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "cannot open image"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "cannot read image"))
		return
	}

	result, err := h.parkingService.IngestUpload(c.Request.Context(), service.Upload{
		RFIDID:      rfid,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
		Source:      "esp32",
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// uploadExit takes the raw image as the request body and rfid_id as a query parameter.
func (h *Handler) uploadExit(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.config.Server.MaxUploadBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "cannot read image: "+err.Error()))
		return
	}

	result, err := h.parkingService.IngestExit(c.Request.Context(), service.Upload{
		RFIDID:      c.Query("rfid_id"),
		ContentType: c.ContentType(),
		Data:        data,
		Source:      "esp32-out",
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) reportEvent(c *gin.Context) {
	var report service.DeviceReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	event, err := h.parkingService.RecordDeviceEvent(c.Request.Context(), report, "http")
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event": event})
}

func (h *Handler) listEvents(c *gin.Context) {
	h.respondEvents(c, strings.TrimSpace(c.Query("rfid_id")))
}

func (h *Handler) listEventsByRFID(c *gin.Context) {
	h.respondEvents(c, c.Param("rfid_id"))
}

func (h *Handler) respondEvents(c *gin.Context, rfid string) {
	limit, offset := h.pagination(c)

	events, err := h.parkingService.ListEvents(c.Request.Context(), rfid, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *Handler) listSessions(c *gin.Context) {
	limit, offset := h.pagination(c)

	page, err := h.parkingService.ListSessions(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) listSlots(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active_only", "false"))

	slots, err := h.slotService.ListSlots(c.Request.Context(), activeOnly)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"slots": slots, "count": len(slots)})
}

func (h *Handler) slotStatus(c *gin.Context) {
	status, err := h.parkingService.SlotStatus(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) createSlot(c *gin.Context) {
	var in service.CreateSlotInput
	if hasBody(c) {
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, err.Error()))
			return
		}
	} else {
		// older dashboards send the fields as query parameters
		in.SlotName = c.Query("slot_name")
		in.RowLetter = c.Query("row_letter")
		if n, err := parseInt(c.Query("slot_number")); err == nil {
			in.SlotNumber = n
		}
		if v, ok := c.GetQuery("is_active"); ok {
			active, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "is_active must be a boolean"))
				return
			}
			in.IsActive = &active
		}
	}

	slot, err := h.slotService.CreateSlot(c.Request.Context(), in)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"slot": slot, "message": "Parking slot created successfully"})
}

func (h *Handler) updateSlot(c *gin.Context) {
	var patch parking.SlotPatch
	if hasBody(c) {
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, err.Error()))
			return
		}
	} else if err := patchFromQuery(c, &patch); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	slot, err := h.slotService.UpdateSlot(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"slot": slot, "message": "Parking slot updated successfully"})
}

func (h *Handler) deleteSlot(c *gin.Context) {
	if err := h.slotService.DeleteSlot(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Parking slot deleted successfully"})
}

func (h *Handler) pagination(c *gin.Context) (int, int) {
	limit := h.config.Parking.DefaultPageSize
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := parseInt(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(http.StatusNotFound, err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse(http.StatusConflict, err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse(http.StatusInternalServerError, "internal error"))
	}
}

func patchFromQuery(c *gin.Context, patch *parking.SlotPatch) error {
	if v, ok := c.GetQuery("slot_name"); ok {
		patch.SlotName = &v
	}
	if v, ok := c.GetQuery("row_letter"); ok {
		patch.RowLetter = &v
	}
	if v, ok := c.GetQuery("slot_number"); ok {
		n, err := parseInt(v)
		if err != nil {
			return errors.New("slot_number must be an integer")
		}
		patch.SlotNumber = &n
	}
	if v, ok := c.GetQuery("is_active"); ok {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("is_active must be a boolean")
		}
		patch.IsActive = &active
	}
	return nil
}

func hasBody(c *gin.Context) bool {
	return c.Request.ContentLength > 0 || c.ContentType() == "application/json"
}

func errorResponse(status int, message string) gin.H {
	return gin.H{
		"error":  message,
		"status": status,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
