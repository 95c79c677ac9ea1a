package clinicalattribute

import "fmt"

// Projection controls the level of detail of a response.
type Projection int

const (
	ProjectionSummary Projection = iota
	ProjectionDetailed
	ProjectionMeta
)

func (p Projection) String() string {
	switch p {
	case ProjectionSummary:
		return "SUMMARY"
	case ProjectionDetailed:
		return "DETAILED"
	case ProjectionMeta:
		return "META"
	}
	return fmt.Sprintf("Projection(%d)", int(p))
}

// ParseProjection parses a projection query value. The empty string yields
// the default SUMMARY.
func ParseProjection(s string) (Projection, error) {
	switch s {
	case "", "SUMMARY":
		return ProjectionSummary, nil
	case "DETAILED":
		return ProjectionDetailed, nil
	case "META":
		return ProjectionMeta, nil
	}
	return ProjectionSummary, fmt.Errorf("invalid projection %q: must be one of SUMMARY, DETAILED, META", s)
}

// Direction is the sort direction.
type Direction int

const (
	DirectionAsc Direction = iota
	DirectionDesc
)

func (d Direction) String() string {
	switch d {
	case DirectionAsc:
		return "ASC"
	case DirectionDesc:
		return "DESC"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection parses a direction query value. The empty string yields ASC.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "ASC":
		return DirectionAsc, nil
	case "DESC":
		return DirectionDesc, nil
	}
	return DirectionAsc, fmt.Errorf("invalid direction %q: must be ASC or DESC", s)
}

// SortBy names a sortable property. SortByNone leaves the order to the
// store's natural ordering.
type SortBy int

const (
	SortByNone SortBy = iota
	SortByClinicalAttributeID
	SortByDisplayName
	SortByDescription
	SortByDatatype
	SortByPatientAttribute
	SortByPriority
	SortByStudyID
)

var sortByNames = map[string]SortBy{
	"clinicalAttributeId": SortByClinicalAttributeID,
	"displayName":         SortByDisplayName,
	"description":         SortByDescription,
	"datatype":            SortByDatatype,
	"patientAttribute":    SortByPatientAttribute,
	"priority":            SortByPriority,
	"studyId":             SortByStudyID,
}

func (s SortBy) String() string {
	switch s {
	case SortByNone:
		return ""
	case SortByClinicalAttributeID:
		return "clinicalAttributeId"
	case SortByDisplayName:
		return "displayName"
	case SortByDescription:
		return "description"
	case SortByDatatype:
		return "datatype"
	case SortByPatientAttribute:
		return "patientAttribute"
	case SortByPriority:
		return "priority"
	case SortByStudyID:
		return "studyId"
	}
	return fmt.Sprintf("SortBy(%d)", int(s))
}

// ParseSortBy parses a sortBy query value. The empty string yields SortByNone.
func ParseSortBy(s string) (SortBy, error) {
	if s == "" {
		return SortByNone, nil
	}
	if v, ok := sortByNames[s]; ok {
		return v, nil
	}
	return SortByNone, fmt.Errorf("invalid sortBy %q", s)
}

// SortByValues lists the accepted sortBy query values.
func SortByValues() []string {
	return []string{
		SortByClinicalAttributeID.String(),
		SortByDisplayName.String(),
		SortByDescription.String(),
		SortByDatatype.String(),
		SortByPatientAttribute.String(),
		SortByPriority.String(),
		SortByStudyID.String(),
	}
}

// Sort is an optional ordering request.
type Sort struct {
	By        SortBy
	Direction Direction
}
