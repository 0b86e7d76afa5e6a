package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"DataPull/internal/domain/models"
	pkghttp "DataPull/pkg/http"
	applogger "DataPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DataUsecase is what the HTTP layer needs from the retrieval pipeline.
type DataUsecase interface {
	Query(ctx context.Context, p models.QueryParams) (*models.Result, error)
	Catalog(ctx context.Context, v models.Vendor) (*models.Catalog, error)
	RefreshCatalog(ctx context.Context, v models.Vendor) (*models.Catalog, error)
	Vendors() []models.Vendor
}

// DataEchoHandler serves the data and catalog endpoints.
type DataEchoHandler struct {
	logger  *applogger.Logger
	data    DataUsecase
	timeout time.Duration
}

// NewDataEchoHandler builds the handler. timeout bounds one data query;
// zero leaves it to the client connection.
func NewDataEchoHandler(logger *applogger.Logger, data DataUsecase, timeout time.Duration) *DataEchoHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &DataEchoHandler{logger: logger, data: data, timeout: timeout}
}

func (h *DataEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/data", h.Data)
	g.POST("/data", h.Data)
	g.GET("/vendors", h.Vendors)
	g.GET("/catalog/:source", h.Catalog)
	g.POST("/catalog/:source/refresh", h.RefreshCatalog)
}

// Data runs one query. Partial results are answered with 200 and
// complete=false; a run without rows is a 502.
func (h *DataEchoHandler) Data(c echo.Context) error {
	req := &models.DataRequest{}
	if verr := pkghttp.ReadAndValidateRequest(c, req); verr != nil {
		return pkghttp.BadRequestResponse(c, verr)
	}
	params, err := req.Params()
	if err != nil {
		return pkghttp.AppErrorResponse(c, toAppError(err))
	}

	ctx := c.Request().Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.data.Query(ctx, params)
	if err != nil {
		h.logger.Warn("data query failed",
			applogger.String("source", params.Source),
			applogger.Strings("tickers", params.Tickers),
			applogger.String("kind", models.ErrorKind(err)),
			applogger.Error(err),
		)
		return pkghttp.AppErrorResponse(c, toAppError(err))
	}
	return pkghttp.SuccessResponse(c, models.NewDataResponse(res))
}

func (h *DataEchoHandler) Vendors(c echo.Context) error {
	return pkghttp.SuccessResponse(c, h.data.Vendors())
}

func (h *DataEchoHandler) Catalog(c echo.Context) error {
	v, err := models.ParseVendor(c.Param("source"))
	if err != nil {
		return pkghttp.AppErrorResponse(c, toAppError(err))
	}
	cat, err := h.data.Catalog(c.Request().Context(), v)
	if err != nil {
		h.logger.Error("catalog load failed", applogger.String("vendor", v.String()), applogger.Error(err))
		return pkghttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return pkghttp.SuccessResponse(c, cat.Summary())
}

func (h *DataEchoHandler) RefreshCatalog(c echo.Context) error {
	v, err := models.ParseVendor(c.Param("source"))
	if err != nil {
		return pkghttp.AppErrorResponse(c, toAppError(err))
	}
	cat, err := h.data.RefreshCatalog(c.Request().Context(), v)
	if err != nil {
		h.logger.Error("catalog refresh failed", applogger.String("vendor", v.String()), applogger.Error(err))
		return pkghttp.AppErrorResponse(c, toAppError(err))
	}
	h.logger.Info("catalog refreshed", applogger.String("vendor", v.String()))
	return pkghttp.SuccessResponse(c, cat.Summary())
}

// toAppError maps pipeline errors onto HTTP statuses.
func toAppError(err error) *pkghttp.AppError {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return pkghttp.NewAppError("ERR_VALIDATION", ve.Field, ve.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrUnsupported):
		return pkghttp.NewAppError("ERR_UNSUPPORTED", "", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrUnknownVendor):
		return pkghttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrEmptyResult):
		appErr := pkghttp.BadGatewayError(err.Error()).WithError(err)
		var ee *models.EmptyResultError
		if errors.As(err, &ee) {
			appErr.WithParam("failures", ee.Failures).WithParam("dropped", ee.Dropped)
		}
		return appErr
	case errors.Is(err, context.DeadlineExceeded):
		return pkghttp.GatewayTimeoutError("query timed out").WithError(err)
	default:
		return pkghttp.InternalError("internal error").WithError(err)
	}
}
