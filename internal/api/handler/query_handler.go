package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxtooter/support-api/internal/core/ports"
)

// QueryHandler handles HTTP requests for the query lifecycle.
type QueryHandler struct {
	service ports.QueryService
}

func NewQueryHandler(service ports.QueryService) *QueryHandler {
	return &QueryHandler{service: service}
}

// Create handles POST /api/queries. The body is JSON, or a multipart form with
// title, description and an optional file.
//
// @Summary      Create a query
// @Tags         queries
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createQueryRequest  false  "Query (JSON)"
// @Param        file  formData  file                false  "Attachment (multipart)"
// @Success      201   {object}  domain.Query
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Router       /api/queries [post]
func (h *QueryHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req createQueryRequest
	in := ports.CreateQueryInput{}
	if isMultipart(c) {
		req.Title = c.FormValue("title")
		req.Description = c.FormValue("description")
		if err := c.Validate(&req); err != nil {
			return err
		}
		upload, cleanup, err := formUpload(c, "file")
		if err != nil {
			return err
		}
		defer cleanup()
		in.Attachment = upload
	} else if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in.Title = req.Title
	in.Description = req.Description

	q, err := h.service.Create(c.Request().Context(), actor, in)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusCreated, q)
}

// List handles GET /api/queries (admin).
//
// @Summary      List all queries
// @Tags         queries
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "open | assigned | resolved"
// @Param        page    query     int     false  "1-based page"
// @Param        limit   query     int     false  "page size (max 100)"
// @Success      200     {object}  queryListResponse
// @Failure      400     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Router       /api/queries [get]
func (h *QueryHandler) List(c echo.Context) error {
	return h.list(c, ports.ScopeAll)
}

// MyQueries handles GET /api/queries/my-queries (customer).
//
// @Summary      List my queries
// @Tags         queries
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "open | assigned | resolved"
// @Param        page    query     int     false  "1-based page"
// @Param        limit   query     int     false  "page size (max 100)"
// @Success      200     {object}  queryListResponse
// @Failure      403     {object}  errorResponse
// @Router       /api/queries/my-queries [get]
func (h *QueryHandler) MyQueries(c echo.Context) error {
	return h.list(c, ports.ScopeMine)
}

// Assigned handles GET /api/queries/assigned (consultant).
//
// @Summary      List queries assigned to me
// @Tags         queries
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "open | assigned | resolved"
// @Param        page    query     int     false  "1-based page"
// @Param        limit   query     int     false  "page size (max 100)"
// @Success      200     {object}  queryListResponse
// @Failure      403     {object}  errorResponse
// @Router       /api/queries/assigned [get]
func (h *QueryHandler) Assigned(c echo.Context) error {
	return h.list(c, ports.ScopeAssigned)
}

func (h *QueryHandler) list(c echo.Context, scope ports.ListScope) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	in := ports.ListQueriesInput{Scope: scope}
	if err := echo.QueryParamsBinder(c).
		String("status", &in.Status).
		Int("page", &in.Page).
		Int("limit", &in.Limit).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	res, err := h.service.List(c.Request().Context(), actor, in)
	if err != nil {
		return MapError(err)
	}

	return c.JSON(http.StatusOK, queryListResponse{
		Data: res.Items,
		Pagination: pagination{
			Total:      res.Total,
			Page:       res.Page,
			Limit:      res.Limit,
			TotalPages: res.TotalPages,
		},
	})
}

// Get handles GET /api/queries/:id.
//
// @Summary      Get a query
// @Tags         queries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Query id"
// @Success      200  {object}  domain.Query
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/queries/{id} [get]
func (h *QueryHandler) Get(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	q, err := h.service.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, q)
}

// Assign handles POST /api/queries/:id/assign (admin).
//
// @Summary      Assign a query to a consultant
// @Tags         queries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string         true  "Query id"
// @Param        body  body      assignRequest  true  "Consultant"
// @Success      200   {object}  domain.Query
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /api/queries/{id}/assign [post]
func (h *QueryHandler) Assign(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req assignRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	q, err := h.service.Assign(c.Request().Context(), actor, c.Param("id"), req.ConsultantID)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, q)
}

// Respond handles POST /api/queries/:id/respond. The body is JSON, or a
// multipart form with response and an optional file.
//
// @Summary      Respond to a query
// @Tags         queries
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true   "Query id"
// @Param        body  body      respondRequest  false  "Response (JSON)"
// @Param        file  formData  file            false  "Attachment (multipart)"
// @Success      200   {object}  domain.Query
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/queries/{id}/respond [post]
func (h *QueryHandler) Respond(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req respondRequest
	in := ports.RespondInput{}
	if isMultipart(c) {
		req.Response = c.FormValue("response")
		if err := c.Validate(&req); err != nil {
			return err
		}
		upload, cleanup, err := formUpload(c, "file")
		if err != nil {
			return err
		}
		defer cleanup()
		in.File = upload
	} else if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in.Message = req.Response

	q, err := h.service.Respond(c.Request().Context(), actor, c.Param("id"), in)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, q)
}

// Resolve handles POST /api/queries/:id/resolve.
//
// @Summary      Resolve a query
// @Tags         queries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Query id"
// @Success      200  {object}  domain.Query
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /api/queries/{id}/resolve [post]
func (h *QueryHandler) Resolve(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	q, err := h.service.Resolve(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, q)
}
