package clinicalattribute

import "fmt"

// ClinicalAttribute maps to the clinical_attribute_meta table joined with
// its owning cancer_study.
type ClinicalAttribute struct {
	AttrID           string       `db:"attr_id" json:"clinicalAttributeId"`
	DisplayName      string       `db:"display_name" json:"displayName"`
	Description      string       `db:"description" json:"description"`
	Datatype         string       `db:"datatype" json:"datatype"`
	PatientAttribute bool         `db:"patient_attribute" json:"patientAttribute"`
	Priority         string       `db:"priority" json:"priority"`
	CancerStudyID    int          `db:"cancer_study_id" json:"-"`
	StudyID          string       `db:"cancer_study_identifier" json:"studyId"`
	Count            *int         `json:"count,omitempty" jsonschema:"description=Samples or patients in the requested scope that carry a value"`
	Study            *CancerStudy `json:"study,omitempty" jsonschema:"description=Only present with the DETAILED projection"`
}

// CancerStudy is the study summary embedded in DETAILED responses.
type CancerStudy struct {
	StudyID     string `db:"cancer_study_identifier" json:"studyId"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
}

// BaseMeta carries the record count returned for META projections.
type BaseMeta struct {
	TotalCount int `json:"totalCount"`
}

// SampleIdentifier addresses one sample within a study.
type SampleIdentifier struct {
	StudyID  string `json:"studyId" validate:"required"`
	SampleID string `json:"sampleId" validate:"required"`
}

// ClinicalAttributeFilter is the request body of the counts fetch. Either a
// sample list id or a list of sample identifiers must be given; when both
// are present the sample list id wins.
type ClinicalAttributeFilter struct {
	SampleListID      *string            `json:"sampleListId,omitempty"`
	SampleIdentifiers []SampleIdentifier `json:"sampleIdentifiers,omitempty" validate:"omitempty,dive"`
}

// SampleScope is the normalised form of a ClinicalAttributeFilter. It is
// always exactly one of SampleListScope or SampleIdentifierScope.
type SampleScope interface {
	isSampleScope()
}

// SampleListScope selects the samples of a stored sample list.
type SampleListScope struct {
	SampleListID string
}

// SampleIdentifierScope selects explicit samples. StudyIDs[i] and
// SampleIDs[i] describe the same sample.
type SampleIdentifierScope struct {
	StudyIDs  []string
	SampleIDs []string
}

func (SampleListScope) isSampleScope()       {}
func (SampleIdentifierScope) isSampleScope() {}

// DistinctStudyIDs returns the study ids of the scope in first-seen order.
func (s SampleIdentifierScope) DistinctStudyIDs() []string {
	seen := make(map[string]bool, len(s.StudyIDs))
	var out []string
	for _, id := range s.StudyIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Scope resolves the filter into its single populated variant. A present
// but empty sampleListId is rejected rather than looked up as a list id.
func (f *ClinicalAttributeFilter) Scope() (SampleScope, error) {
	if f.SampleListID != nil {
		if *f.SampleListID == "" {
			return nil, fmt.Errorf("sampleListId must not be empty")
		}
		return SampleListScope{SampleListID: *f.SampleListID}, nil
	}
	if f.SampleIdentifiers == nil {
		return nil, fmt.Errorf("either sampleListId or sampleIdentifiers must be present")
	}

	scope := SampleIdentifierScope{
		StudyIDs:  make([]string, 0, len(f.SampleIdentifiers)),
		SampleIDs: make([]string, 0, len(f.SampleIdentifiers)),
	}
	for _, id := range f.SampleIdentifiers {
		scope.StudyIDs = append(scope.StudyIDs, id.StudyID)
		scope.SampleIDs = append(scope.SampleIDs, id.SampleID)
	}
	return scope, nil
}
