package vschallan

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

// RegisterRoutes mounts the operator API under /api/vschallan.
func RegisterRoutes(r gin.IRouter, svc *Service) {
	api := r.Group("/api/vschallan")
	api.POST("/token", TokenHandler(svc))
	api.POST("/reference/:kind/sync", ReferenceSyncHandler(svc))
	api.POST("/retailers/:id/register", RegisterRetailerHandler(svc))
	api.POST("/branches/:id/register", RegisterBranchHandler(svc))
	api.POST("/retailers/:id/upload", UploadFileHandler(svc))
	api.POST("/transactions/:name", PosTransactionHandler(svc))
	api.POST("/invoices/:number/sync", SyncInvoiceHandler(svc))
	api.GET("/invoices/:number/details", InvoiceDetailsHandler(svc))
	api.GET("/invoices/:number/schallan", DownloadSchallanHandler(svc))
	api.POST("/auto-sync", AutoSyncHandler(svc))
}

// statusFor maps an error to the HTTP status the API answers with. Error
// kinds take precedence over a wrapped store.ErrNotFound.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrRegistration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrRequest),
		errors.Is(err, ErrUnknownFormat), errors.Is(err, ErrUnexpectedResponse),
		errors.Is(err, ErrDownload):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func syncResultStatus(r SyncResult) int {
	if r.Err == nil {
		return http.StatusOK
	}
	return statusFor(r.Err)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func TokenHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TokenRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		token, err := svc.GetAccessToken(c.Request.Context(), req.ForceRefresh)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, TokenResponse{ExpiryDate: token.ExpiryDate, CompanyID: token.CompanyID})
	}
}

func ReferenceSyncHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReferenceSyncRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		kind := strings.TrimSpace(c.Param("kind"))
		if kind == "all" {
			report, err := svc.SyncReferenceData(c.Request.Context())
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, report)
			return
		}
		items, err := svc.GetReference(c.Request.Context(), models.ReferenceKind(kind), req.ForceRefresh, req.ParentID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func RegisterRetailerHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		result, err := svc.RegisterRetailer(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func RegisterBranchHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		result, err := svc.RegisterBranch(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// UploadFileHandler takes the retailer's local id in the path and sends the
// file under its remote retailer id.
func UploadFileHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req UploadFileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.FormatValidationErrors(err)})
			return
		}
		retailerID := req.RetailerID
		if retailerID == "" {
			retailer, err := svc.repo.GetRetailer(c.Request.Context(), id)
			if err != nil {
				abortWithError(c, err)
				return
			}
			retailerID = retailer.RetailerId
		}
		doc, err := svc.UploadFile(c.Request.Context(), req.Category, req.Path, retailerID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func PosTransactionHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		txn, err := svc.repo.GetPosTransaction(c.Request.Context(), c.Param("name"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		invoice, err := svc.HandlePosTransaction(c.Request.Context(), *txn)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, TransactionResponse{Invoice: invoice})
	}
}

func SyncInvoiceHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := svc.SyncVatInvoice(c.Request.Context(), c.Param("number"))
		c.JSON(syncResultStatus(result), result)
	}
}

func InvoiceDetailsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := svc.GetVatInvoiceDetails(c.Request.Context(), c.Param("number"))
		c.JSON(syncResultStatus(result), result)
	}
}

func DownloadSchallanHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		number := c.Param("number")
		downloadURL, err := svc.DownloadSchallan(c.Request.Context(), number)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, DownloadResponse{InvoiceNumber: number, DownloadURL: downloadURL})
	}
}

func AutoSyncHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.SetTriggeredByInContext(c.Request.Context(), models.SyncTriggeredManual)
		report, err := svc.AutoSync(ctx)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
