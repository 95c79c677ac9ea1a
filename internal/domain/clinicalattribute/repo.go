package clinicalattribute

import (
	"context"

	"github.com/portal/portal/pkg/pagination"
)

// Query selects clinical attributes. A nil StudyIDs matches every study; a
// nil Page returns all rows.
type Query struct {
	StudyIDs []string
	Page     *pagination.Params
	Sort     Sort
}

type Repository interface {
	StudyExists(ctx context.Context, studyID string) (bool, error)
	SampleListStudyID(ctx context.Context, sampleListID string) (string, error)
	List(ctx context.Context, q Query) ([]*ClinicalAttribute, error)
	Count(ctx context.Context, studyIDs []string) (int, error)
	Get(ctx context.Context, studyID, attrID string) (*ClinicalAttribute, error)
	CountsBySampleIDs(ctx context.Context, studyIDs, sampleIDs []string, sort Sort) ([]*ClinicalAttribute, error)
	CountsBySampleListID(ctx context.Context, sampleListID string, sort Sort) ([]*ClinicalAttribute, error)
}
