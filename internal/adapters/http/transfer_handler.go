package http

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskdeck/core/internal/application/services"
	"github.com/taskdeck/core/internal/infrastructure/logger"
)

// exportFilename is the fixed name of the downloadable snapshot.
const exportFilename = "taskdeck-export.json"

// maxImportBytes bounds import payloads; the collection is a local task
// list, not a bulk data set.
const maxImportBytes = 32 << 20

// TransferHandler handles JSON export and import requests
type TransferHandler struct {
	transferService *services.TransferService
	logger          *logger.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(transferService *services.TransferService, logger *logger.Logger) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		logger:          logger,
	}
}

// Export handles downloading the full collection as pretty-printed JSON
func (h *TransferHandler) Export(c echo.Context) error {
	payload, err := h.transferService.Export(c.Request().Context())
	if err != nil {
		h.logger.Error("Export failed", "error", err)
		return domainError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+exportFilename+`"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, payload)
}

// Import handles merging an uploaded JSON document into the collection.
// The payload may arrive as a multipart file field named "file" or as a
// raw JSON body.
func (h *TransferHandler) Import(c echo.Context) error {
	payload, err := importPayload(c)
	if err != nil {
		return err
	}

	summary, err := h.transferService.Import(c.Request().Context(), payload)
	if err != nil {
		h.logger.Error("Import failed", "error", err)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, summary)
}

func importPayload(c echo.Context) ([]byte, error) {
	if file, err := c.FormFile("file"); err == nil {
		src, err := file.Open()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "Cannot open uploaded file")
		}
		defer src.Close()

		payload, err := io.ReadAll(io.LimitReader(src, maxImportBytes))
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "Cannot read uploaded file")
		}
		return payload, nil
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxImportBytes))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Cannot read request body")
	}
	return payload, nil
}
