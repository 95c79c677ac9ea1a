package clinicalattribute

import (
	"errors"
	"fmt"
)

// ErrMismatchedIdentifiers is returned when study and sample id lists differ
// in length.
var ErrMismatchedIdentifiers = errors.New("studyIds and sampleIds must have the same length")

type StudyNotFoundError struct {
	StudyID string
}

func (e *StudyNotFoundError) Error() string {
	return fmt.Sprintf("study not found: %s", e.StudyID)
}

type ClinicalAttributeNotFoundError struct {
	StudyID             string
	ClinicalAttributeID string
}

func (e *ClinicalAttributeNotFoundError) Error() string {
	return fmt.Sprintf("clinical attribute not found: %s in study %s", e.ClinicalAttributeID, e.StudyID)
}

type SampleListNotFoundError struct {
	SampleListID string
}

func (e *SampleListNotFoundError) Error() string {
	return fmt.Sprintf("sample list not found: %s", e.SampleListID)
}

// IsNotFound reports whether err signals a missing study, attribute or
// sample list.
func IsNotFound(err error) bool {
	var (
		study *StudyNotFoundError
		attr  *ClinicalAttributeNotFoundError
		list  *SampleListNotFoundError
	)
	return errors.As(err, &study) || errors.As(err, &attr) || errors.As(err, &list)
}
