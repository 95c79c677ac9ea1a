package clinicalattribute

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type clinicalAttributeRepoPG struct{ db queryable }

func NewClinicalAttributeRepoPG(pool *pgxpool.Pool) Repository {
	return &clinicalAttributeRepoPG{db: pool}
}

const caCols = `cam.attr_id, cam.display_name, cam.description, cam.datatype,
	cam.patient_attribute, cam.priority, cam.cancer_study_id,
	cs.cancer_study_identifier, cs.name, COALESCE(cs.description, '')`

const caFrom = ` FROM clinical_attribute_meta cam
	JOIN cancer_study cs ON cs.cancer_study_id = cam.cancer_study_id`

func scanAttribute(row pgx.Row, extra ...interface{}) (*ClinicalAttribute, error) {
	var a ClinicalAttribute
	var study CancerStudy
	dest := []interface{}{&a.AttrID, &a.DisplayName, &a.Description, &a.Datatype,
		&a.PatientAttribute, &a.Priority, &a.CancerStudyID,
		&study.StudyID, &study.Name, &study.Description}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	a.StudyID = study.StudyID
	a.Study = &study
	return &a, nil
}

// sortColumn maps a SortBy to its column. Only these identifiers ever reach
// the ORDER BY clause.
func sortColumn(by SortBy) (string, bool) {
	switch by {
	case SortByNone:
		return "", false
	case SortByClinicalAttributeID:
		return "cam.attr_id", true
	case SortByDisplayName:
		return "cam.display_name", true
	case SortByDescription:
		return "cam.description", true
	case SortByDatatype:
		return "cam.datatype", true
	case SortByPatientAttribute:
		return "cam.patient_attribute", true
	case SortByPriority:
		return "cam.priority", true
	case SortByStudyID:
		return "cs.cancer_study_identifier", true
	}
	return "", false
}

func orderBy(s Sort) string {
	col, ok := sortColumn(s.By)
	if !ok {
		return " ORDER BY cs.cancer_study_identifier, cam.attr_id"
	}
	dir := "ASC"
	if s.Direction == DirectionDesc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, cs.cancer_study_identifier, cam.attr_id", col, dir)
}

func (r *clinicalAttributeRepoPG) StudyExists(ctx context.Context, studyID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cancer_study WHERE cancer_study_identifier = $1)`, studyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check study %s: %w", studyID, err)
	}
	return exists, nil
}

func (r *clinicalAttributeRepoPG) SampleListStudyID(ctx context.Context, sampleListID string) (string, error) {
	var studyID string
	err := r.db.QueryRow(ctx, `
		SELECT cs.cancer_study_identifier
		FROM sample_list sl
		JOIN cancer_study cs ON cs.cancer_study_id = sl.cancer_study_id
		WHERE sl.stable_id = $1`, sampleListID).Scan(&studyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &SampleListNotFoundError{SampleListID: sampleListID}
	}
	if err != nil {
		return "", fmt.Errorf("resolve sample list %s: %w", sampleListID, err)
	}
	return studyID, nil
}

func (r *clinicalAttributeRepoPG) List(ctx context.Context, q Query) ([]*ClinicalAttribute, error) {
	var sb strings.Builder
	var args []interface{}
	sb.WriteString(`SELECT ` + caCols + caFrom)
	if q.StudyIDs != nil {
		args = append(args, q.StudyIDs)
		sb.WriteString(` WHERE cs.cancer_study_identifier = ANY($1)`)
	}
	sb.WriteString(orderBy(q.Sort))
	if q.Page != nil {
		args = append(args, q.Page.Limit(), q.Page.Offset())
		fmt.Fprintf(&sb, ` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list clinical attributes: %w", err)
	}
	defer rows.Close()
	return collect(rows, false)
}

// collect drains rows. When counted is set each row carries a trailing
// count column.
func collect(rows pgx.Rows, counted bool) ([]*ClinicalAttribute, error) {
	items := []*ClinicalAttribute{}
	for rows.Next() {
		var extra []interface{}
		var n int
		if counted {
			extra = append(extra, &n)
		}
		a, err := scanAttribute(rows, extra...)
		if err != nil {
			return nil, fmt.Errorf("scan clinical attribute: %w", err)
		}
		if counted {
			a.Count = &n
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clinical attributes: %w", err)
	}
	return items, nil
}

func (r *clinicalAttributeRepoPG) Count(ctx context.Context, studyIDs []string) (int, error) {
	sql := `SELECT COUNT(*)` + caFrom
	var args []interface{}
	if studyIDs != nil {
		sql += ` WHERE cs.cancer_study_identifier = ANY($1)`
		args = append(args, studyIDs)
	}
	var total int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count clinical attributes: %w", err)
	}
	return total, nil
}

func (r *clinicalAttributeRepoPG) Get(ctx context.Context, studyID, attrID string) (*ClinicalAttribute, error) {
	row := r.db.QueryRow(ctx, `SELECT `+caCols+caFrom+`
		WHERE cs.cancer_study_identifier = $1 AND cam.attr_id = $2`, studyID, attrID)
	a, err := scanAttribute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ClinicalAttributeNotFoundError{StudyID: studyID, ClinicalAttributeID: attrID}
	}
	if err != nil {
		return nil, fmt.Errorf("get clinical attribute %s/%s: %w", studyID, attrID, err)
	}
	return a, nil
}

// countsSQL counts, per attribute, the selected samples (sample attributes)
// or their patients (patient attributes) that carry a value. The selected
// samples come from the req CTE supplied by the caller. Attributes with no
// values in scope are omitted.
const countsSQL = `
counts AS (
	SELECT req.cancer_study_id, c.attr_id, FALSE AS patient_attribute,
		COUNT(DISTINCT req.sample_internal_id) AS cnt
	FROM req JOIN clinical_sample c ON c.internal_id = req.sample_internal_id
	GROUP BY req.cancer_study_id, c.attr_id
	UNION ALL
	SELECT req.cancer_study_id, c.attr_id, TRUE AS patient_attribute,
		COUNT(DISTINCT req.patient_internal_id) AS cnt
	FROM req JOIN clinical_patient c ON c.internal_id = req.patient_internal_id
	GROUP BY req.cancer_study_id, c.attr_id
)
SELECT ` + caCols + `, counts.cnt` + caFrom + `
	JOIN counts ON counts.cancer_study_id = cam.cancer_study_id
		AND counts.attr_id = cam.attr_id
		AND counts.patient_attribute = cam.patient_attribute`

func (r *clinicalAttributeRepoPG) CountsBySampleIDs(ctx context.Context, studyIDs, sampleIDs []string, sort Sort) ([]*ClinicalAttribute, error) {
	if len(studyIDs) != len(sampleIDs) {
		return nil, ErrMismatchedIdentifiers
	}
	if len(studyIDs) == 0 {
		return []*ClinicalAttribute{}, nil
	}
	sql := `WITH req AS (
	SELECT DISTINCT s.internal_id AS sample_internal_id, p.internal_id AS patient_internal_id,
		p.cancer_study_id
	FROM unnest($1::text[], $2::text[]) AS r(study_id, sample_id)
	JOIN cancer_study cs ON cs.cancer_study_identifier = r.study_id
	JOIN patient p ON p.cancer_study_id = cs.cancer_study_id
	JOIN sample s ON s.patient_id = p.internal_id AND s.stable_id = r.sample_id
),` + countsSQL + orderBy(sort)

	rows, err := r.db.Query(ctx, sql, studyIDs, sampleIDs)
	if err != nil {
		return nil, fmt.Errorf("count clinical attributes by sample ids: %w", err)
	}
	defer rows.Close()
	return collect(rows, true)
}

func (r *clinicalAttributeRepoPG) CountsBySampleListID(ctx context.Context, sampleListID string, sort Sort) ([]*ClinicalAttribute, error) {
	sql := `WITH req AS (
	SELECT DISTINCT s.internal_id AS sample_internal_id, p.internal_id AS patient_internal_id,
		p.cancer_study_id
	FROM sample_list sl
	JOIN sample_list_list sll ON sll.list_id = sl.list_id
	JOIN sample s ON s.internal_id = sll.sample_id
	JOIN patient p ON p.internal_id = s.patient_id
	WHERE sl.stable_id = $1
),` + countsSQL + orderBy(sort)

	rows, err := r.db.Query(ctx, sql, sampleListID)
	if err != nil {
		return nil, fmt.Errorf("count clinical attributes by sample list %s: %w", sampleListID, err)
	}
	defer rows.Close()
	return collect(rows, true)
}
