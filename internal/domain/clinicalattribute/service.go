package clinicalattribute

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/portal/portal/pkg/pagination"
)

// ClinicalAttributeService is the collaborator the HTTP handler delegates to.
// Not-found conditions are reported as *StudyNotFoundError,
// *ClinicalAttributeNotFoundError or *SampleListNotFoundError.
type ClinicalAttributeService interface {
	GetAllClinicalAttributes(ctx context.Context, projection Projection, page pagination.Params, sort Sort) ([]*ClinicalAttribute, error)
	GetMetaClinicalAttributes(ctx context.Context) (*BaseMeta, error)
	GetAllClinicalAttributesInStudy(ctx context.Context, studyID string, projection Projection, page pagination.Params, sort Sort) ([]*ClinicalAttribute, error)
	GetMetaClinicalAttributesInStudy(ctx context.Context, studyID string) (*BaseMeta, error)
	GetClinicalAttribute(ctx context.Context, studyID, clinicalAttributeID string) (*ClinicalAttribute, error)
	FetchClinicalAttributes(ctx context.Context, studyIDs []string, projection Projection) ([]*ClinicalAttribute, error)
	FetchMetaClinicalAttributes(ctx context.Context, studyIDs []string) (*BaseMeta, error)
	GetAllClinicalAttributesInStudiesBySampleListID(ctx context.Context, sampleListID string, projection Projection, sort Sort) ([]*ClinicalAttribute, error)
	GetAllClinicalAttributesInStudiesBySampleIDs(ctx context.Context, studyIDs, sampleIDs []string, projection Projection, sort Sort) ([]*ClinicalAttribute, error)
}

const tracerName = "github.com/portal/portal/internal/domain/clinicalattribute"

// Service implements ClinicalAttributeService over a Repository.
type Service struct {
	repo   Repository
	tracer trace.Tracer
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, tracer: otel.Tracer(tracerName)}
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "clinicalattribute."+op, trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// project applies the projection to a result set in place.
func project(items []*ClinicalAttribute, projection Projection) []*ClinicalAttribute {
	switch projection {
	case ProjectionDetailed:
		return items
	case ProjectionSummary, ProjectionMeta:
		for _, a := range items {
			a.Study = nil
		}
		return items
	}
	return items
}

func (s *Service) requireStudy(ctx context.Context, studyID string) error {
	ok, err := s.repo.StudyExists(ctx, studyID)
	if err != nil {
		return err
	}
	if !ok {
		return &StudyNotFoundError{StudyID: studyID}
	}
	return nil
}

func (s *Service) GetAllClinicalAttributes(ctx context.Context, projection Projection, page pagination.Params, sort Sort) (_ []*ClinicalAttribute, err error) {
	ctx, span := s.start(ctx, "GetAllClinicalAttributes",
		attribute.String("projection", projection.String()),
		attribute.Int("page_size", page.PageSize),
		attribute.Int("page_number", page.PageNumber))
	defer func() { end(span, err) }()

	items, err := s.repo.List(ctx, Query{Page: &page, Sort: sort})
	if err != nil {
		return nil, err
	}
	return project(items, projection), nil
}

func (s *Service) GetMetaClinicalAttributes(ctx context.Context) (_ *BaseMeta, err error) {
	ctx, span := s.start(ctx, "GetMetaClinicalAttributes")
	defer func() { end(span, err) }()

	total, err := s.repo.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &BaseMeta{TotalCount: total}, nil
}

func (s *Service) GetAllClinicalAttributesInStudy(ctx context.Context, studyID string, projection Projection, page pagination.Params, sort Sort) (_ []*ClinicalAttribute, err error) {
	ctx, span := s.start(ctx, "GetAllClinicalAttributesInStudy",
		attribute.String("study_id", studyID),
		attribute.String("projection", projection.String()))
	defer func() { end(span, err) }()

	if err := s.requireStudy(ctx, studyID); err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, Query{StudyIDs: []string{studyID}, Page: &page, Sort: sort})
	if err != nil {
		return nil, err
	}
	return project(items, projection), nil
}

func (s *Service) GetMetaClinicalAttributesInStudy(ctx context.Context, studyID string) (_ *BaseMeta, err error) {
	ctx, span := s.start(ctx, "GetMetaClinicalAttributesInStudy", attribute.String("study_id", studyID))
	defer func() { end(span, err) }()

	if err := s.requireStudy(ctx, studyID); err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, []string{studyID})
	if err != nil {
		return nil, err
	}
	return &BaseMeta{TotalCount: total}, nil
}

func (s *Service) GetClinicalAttribute(ctx context.Context, studyID, clinicalAttributeID string) (_ *ClinicalAttribute, err error) {
	ctx, span := s.start(ctx, "GetClinicalAttribute",
		attribute.String("study_id", studyID),
		attribute.String("clinical_attribute_id", clinicalAttributeID))
	defer func() { end(span, err) }()

	if err := s.requireStudy(ctx, studyID); err != nil {
		return nil, err
	}
	a, err := s.repo.Get(ctx, studyID, clinicalAttributeID)
	if err != nil {
		return nil, err
	}
	a.Study = nil
	return a, nil
}

func (s *Service) FetchClinicalAttributes(ctx context.Context, studyIDs []string, projection Projection) (_ []*ClinicalAttribute, err error) {
	ctx, span := s.start(ctx, "FetchClinicalAttributes",
		attribute.Int("studies", len(studyIDs)),
		attribute.String("projection", projection.String()))
	defer func() { end(span, err) }()

	items, err := s.repo.List(ctx, Query{StudyIDs: nonNil(studyIDs)})
	if err != nil {
		return nil, err
	}
	return project(items, projection), nil
}

func (s *Service) FetchMetaClinicalAttributes(ctx context.Context, studyIDs []string) (_ *BaseMeta, err error) {
	ctx, span := s.start(ctx, "FetchMetaClinicalAttributes", attribute.Int("studies", len(studyIDs)))
	defer func() { end(span, err) }()

	total, err := s.repo.Count(ctx, nonNil(studyIDs))
	if err != nil {
		return nil, err
	}
	return &BaseMeta{TotalCount: total}, nil
}

func (s *Service) GetAllClinicalAttributesInStudiesBySampleListID(ctx context.Context, sampleListID string, projection Projection, sort Sort) (_ []*ClinicalAttribute, err error) {
	ctx, span := s.start(ctx, "GetAllClinicalAttributesInStudiesBySampleListID",
		attribute.String("sample_list_id", sampleListID))
	defer func() { end(span, err) }()

	if _, err := s.repo.SampleListStudyID(ctx, sampleListID); err != nil {
		return nil, err
	}
	items, err := s.repo.CountsBySampleListID(ctx, sampleListID, sort)
	if err != nil {
		return nil, err
	}
	return project(items, projection), nil
}

func (s *Service) GetAllClinicalAttributesInStudiesBySampleIDs(ctx context.Context, studyIDs, sampleIDs []string, projection Projection, sort Sort) (_ []*ClinicalAttribute, err error) {
	ctx, span := s.start(ctx, "GetAllClinicalAttributesInStudiesBySampleIDs", attribute.Int("samples", len(sampleIDs)))
	defer func() { end(span, err) }()

	if len(studyIDs) != len(sampleIDs) {
		return nil, fmt.Errorf("%w: %d study ids, %d sample ids", ErrMismatchedIdentifiers, len(studyIDs), len(sampleIDs))
	}
	items, err := s.repo.CountsBySampleIDs(ctx, studyIDs, sampleIDs, sort)
	if err != nil {
		return nil, err
	}
	return project(items, projection), nil
}

// nonNil keeps an empty study list from being read as "all studies".
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
