package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bugtracker/bugtracker/internal/core/ports"
)

// BugHandler handles HTTP requests for bug operations.
type BugHandler struct {
	service ports.BugService
}

func NewBugHandler(service ports.BugService) *BugHandler {
	return &BugHandler{service: service}
}

// List handles GET /api/bugs.
//
// @Summary      List bugs
// @Tags         bugs
// @Produce      json
// @Security     BearerAuth
// @Param        status    query     string  false  "open, in_progress, resolved, closed or all"
// @Param        priority  query     string  false  "low, medium, high, critical or all"
// @Param        assignee  query     string  false  "username, unassigned or all"
// @Param        search    query     string  false  "substring of title or description"
// @Param        page      query     int     false  "page number, from 1"
// @Param        per_page  query     int     false  "page size, at most 100"
// @Success      200       {object}  ports.Page[domain.Bug]
// @Failure      422       {object}  errorResponse
// @Failure      503       {object}  errorResponse
// @Router       /bugs [get]
func (h *BugHandler) List(c echo.Context) error {
	var q listBugsQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	page, err := h.service.ListBugs(c.Request().Context(), ports.ListBugsInput{
		Status:   q.Status,
		Priority: q.Priority,
		Assignee: q.Assignee,
		Search:   q.Search,
		Page:     q.Page,
		PerPage:  q.PerPage,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// Create handles POST /api/bugs. The caller becomes the reporter.
//
// @Summary      Report a bug
// @Tags         bugs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      ports.BugDraft  true  "Bug details"
// @Success      201   {object}  domain.Bug
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /bugs [post]
func (h *BugHandler) Create(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var draft ports.BugDraft
	if err := c.Bind(&draft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	bug, err := h.service.CreateBug(c.Request().Context(), p, draft)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, "/api/bugs/"+bug.ID)
	return c.JSON(http.StatusCreated, bug)
}

// Get handles GET /api/bugs/:id.
//
// @Summary      Get a bug with its comments
// @Tags         bugs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Bug id"
// @Success      200  {object}  domain.Bug
// @Failure      404  {object}  errorResponse
// @Router       /bugs/{id} [get]
func (h *BugHandler) Get(c echo.Context) error {
	bug, err := h.service.GetBug(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bug)
}

// Update handles PUT /api/bugs/:id. Absent fields are left untouched and an
// empty assignee clears the assignment.
//
// @Summary      Update a bug
// @Tags         bugs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true  "Bug id"
// @Param        body  body      ports.BugPatch  true  "Fields to change"
// @Success      200   {object}  domain.Bug
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /bugs/{id} [put]
func (h *BugHandler) Update(c echo.Context) error {
	var patch ports.BugPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	bug, err := h.service.UpdateBug(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bug)
}

// Delete handles DELETE /api/bugs/:id.
//
// @Summary      Delete a bug and its comments
// @Tags         bugs
// @Security     BearerAuth
// @Param        id   path  string  true  "Bug id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /bugs/{id} [delete]
func (h *BugHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteBug(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AddComment handles POST /api/bugs/:id/comments. The caller is the author.
//
// @Summary      Comment on a bug
// @Tags         bugs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true  "Bug id"
// @Param        body  body      commentRequest  true  "Comment"
// @Success      201   {object}  domain.Comment
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /bugs/{id}/comments [post]
func (h *BugHandler) AddComment(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	comment, err := h.service.AddComment(c.Request().Context(), c.Param("id"), p.UserID, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

// Stats handles GET /api/bugs/stats.
//
// @Summary      Bug counts by status and priority
// @Tags         bugs
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.BugStats
// @Failure      503  {object}  errorResponse
// @Router       /bugs/stats [get]
func (h *BugHandler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
