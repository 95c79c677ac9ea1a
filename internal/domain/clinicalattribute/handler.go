package clinicalattribute

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/portal/portal/internal/platform/auth"
	"github.com/portal/portal/pkg/pagination"
)

// StudyGuard authorizes reads of cancer studies. Denials wrap
// auth.ErrForbidden; an unknown sample list is reported as
// *SampleListNotFoundError.
type StudyGuard interface {
	CanReadStudies(ctx context.Context, studyIDs ...string) error
	CanReadSampleList(ctx context.Context, sampleListID string) error
}

type Handler struct {
	svc      ClinicalAttributeService
	guard    StudyGuard
	validate *validator.Validate
	// maxListSize bounds the study id and sample identifier lists of
	// request bodies.
	maxListSize int
}

func NewHandler(svc ClinicalAttributeService, guard StudyGuard) *Handler {
	return &Handler{
		svc:         svc,
		guard:       guard,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		maxListSize: pagination.MaxPageSize,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/clinical-attributes", h.GetAllClinicalAttributes)
	api.GET("/studies/:studyId/clinical-attributes", h.GetAllClinicalAttributesInStudy)
	api.GET("/studies/:studyId/clinical-attributes/:clinicalAttributeId", h.GetClinicalAttributeInStudy)
	api.POST("/clinical-attributes/fetch", h.FetchClinicalAttributes)
	api.POST("/clinical-attributes/counts/fetch", h.FetchClinicalAttributeCounts)
}

// GET /clinical-attributes
func (h *Handler) GetAllClinicalAttributes(c echo.Context) error {
	projection, page, sort, err := listParams(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if projection == ProjectionMeta {
		meta, err := h.svc.GetMetaClinicalAttributes(ctx)
		if err != nil {
			return h.fail(c, err)
		}
		return metaResponse(c, meta)
	}

	attrs, err := h.svc.GetAllClinicalAttributes(ctx, projection, page, sort)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, nonNilList(attrs))
}

// GET /studies/:studyId/clinical-attributes
func (h *Handler) GetAllClinicalAttributesInStudy(c echo.Context) error {
	studyID := c.Param("studyId")
	projection, page, sort, err := listParams(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if err := h.guard.CanReadStudies(ctx, studyID); err != nil {
		return h.fail(c, err)
	}

	if projection == ProjectionMeta {
		meta, err := h.svc.GetMetaClinicalAttributesInStudy(ctx, studyID)
		if err != nil {
			return h.fail(c, err)
		}
		return metaResponse(c, meta)
	}

	attrs, err := h.svc.GetAllClinicalAttributesInStudy(ctx, studyID, projection, page, sort)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, nonNilList(attrs))
}

// GET /studies/:studyId/clinical-attributes/:clinicalAttributeId
func (h *Handler) GetClinicalAttributeInStudy(c echo.Context) error {
	studyID := c.Param("studyId")
	attrID := c.Param("clinicalAttributeId")
	ctx := c.Request().Context()

	if err := h.guard.CanReadStudies(ctx, studyID); err != nil {
		return h.fail(c, err)
	}

	attr, err := h.svc.GetClinicalAttribute(ctx, studyID, attrID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, attr)
}

// POST /clinical-attributes/fetch
func (h *Handler) FetchClinicalAttributes(c echo.Context) error {
	projection, err := ParseProjection(c.QueryParam("projection"))
	if err != nil {
		return badRequest(err)
	}

	var studyIDs []string
	if err := (&echo.DefaultBinder{}).BindBody(c, &studyIDs); err != nil {
		return err
	}
	rule := fmt.Sprintf("required,min=1,max=%d,dive,required", h.maxListSize)
	if err := h.validate.Var(studyIDs, rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("request body must list between 1 and %d non-empty study ids", h.maxListSize))
	}

	ctx := c.Request().Context()
	if err := h.guard.CanReadStudies(ctx, studyIDs...); err != nil {
		return h.fail(c, err)
	}

	if projection == ProjectionMeta {
		meta, err := h.svc.FetchMetaClinicalAttributes(ctx, studyIDs)
		if err != nil {
			return h.fail(c, err)
		}
		return metaResponse(c, meta)
	}

	attrs, err := h.svc.FetchClinicalAttributes(ctx, studyIDs, projection)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, nonNilList(attrs))
}

// POST /clinical-attributes/counts/fetch
func (h *Handler) FetchClinicalAttributeCounts(c echo.Context) error {
	projection, err := ParseProjection(c.QueryParam("projection"))
	if err != nil {
		return badRequest(err)
	}
	sort, err := sortParams(c)
	if err != nil {
		return err
	}

	var filter ClinicalAttributeFilter
	if err := (&echo.DefaultBinder{}).BindBody(c, &filter); err != nil {
		return err
	}
	if len(filter.SampleIdentifiers) > h.maxListSize {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("sampleIdentifiers must contain at most %d entries", h.maxListSize))
	}
	if err := h.validate.Struct(&filter); err != nil {
		return badRequest(validationMessage(err))
	}
	scope, err := filter.Scope()
	if err != nil {
		return badRequest(err)
	}

	ctx := c.Request().Context()
	var attrs []*ClinicalAttribute

	switch s := scope.(type) {
	case SampleListScope:
		if err := h.guard.CanReadSampleList(ctx, s.SampleListID); err != nil {
			return h.fail(c, err)
		}
		attrs, err = h.svc.GetAllClinicalAttributesInStudiesBySampleListID(ctx, s.SampleListID, projection, sort)
	case SampleIdentifierScope:
		if err := h.guard.CanReadStudies(ctx, s.DistinctStudyIDs()...); err != nil {
			return h.fail(c, err)
		}
		attrs, err = h.svc.GetAllClinicalAttributesInStudiesBySampleIDs(ctx, s.StudyIDs, s.SampleIDs, projection, sort)
	default:
		return fmt.Errorf("unhandled sample scope %T", scope)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, nonNilList(attrs))
}

// fail maps service and guard errors onto HTTP responses. Not-found
// conditions produce an empty 404; anything unrecognised is left to echo's
// error handler.
func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case IsNotFound(err):
		return c.NoContent(http.StatusNotFound)
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrMismatchedIdentifiers):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

func listParams(c echo.Context) (Projection, pagination.Params, Sort, error) {
	projection, err := ParseProjection(c.QueryParam("projection"))
	if err != nil {
		return projection, pagination.Params{}, Sort{}, badRequest(err)
	}
	page, err := pagination.FromContext(c)
	if err != nil {
		return projection, page, Sort{}, badRequest(err)
	}
	sort, err := sortParams(c)
	if err != nil {
		return projection, page, sort, err
	}
	return projection, page, sort, nil
}

func sortParams(c echo.Context) (Sort, error) {
	by, err := ParseSortBy(c.QueryParam("sortBy"))
	if err != nil {
		return Sort{}, badRequest(err)
	}
	dir, err := ParseDirection(c.QueryParam("direction"))
	if err != nil {
		return Sort{}, badRequest(err)
	}
	return Sort{By: by, Direction: dir}, nil
}

func metaResponse(c echo.Context, meta *BaseMeta) error {
	pagination.SetTotalCount(c, meta.TotalCount)
	return c.NoContent(http.StatusOK)
}

func badRequest(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Namespace())
	}
	return fmt.Errorf("%s failed %s validation", fe.Namespace(), fe.Tag())
}

// nonNilList keeps empty results serialised as [] rather than null.
func nonNilList(items []*ClinicalAttribute) []*ClinicalAttribute {
	if items == nil {
		return []*ClinicalAttribute{}
	}
	return items
}
