package auth

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleAdmin  = "admin"
	AllStudies = "*"
)

// ErrForbidden is wrapped by every denial returned from StudyGuard.
var ErrForbidden = errors.New("access denied")

// SampleListResolver maps a sample list to the study that owns it.
type SampleListResolver interface {
	SampleListStudyID(ctx context.Context, sampleListID string) (string, error)
}

// StudyGuard decides whether the caller on a context may read cancer studies.
// A study is readable when it is public, when the caller holds the admin
// role, or when the caller's study grants include it or "*".
type StudyGuard struct {
	public   map[string]bool
	resolver SampleListResolver
}

func NewStudyGuard(publicStudies []string, resolver SampleListResolver) *StudyGuard {
	public := make(map[string]bool, len(publicStudies))
	for _, s := range publicStudies {
		public[s] = true
	}
	return &StudyGuard{public: public, resolver: resolver}
}

// CanReadStudies returns nil when every study id is readable. The error for
// the first unreadable study wraps ErrForbidden.
func (g *StudyGuard) CanReadStudies(ctx context.Context, studyIDs ...string) error {
	roles := RolesFromContext(ctx)
	for _, r := range roles {
		if r == RoleAdmin {
			return nil
		}
	}

	granted := make(map[string]bool)
	for _, s := range StudiesFromContext(ctx) {
		if s == AllStudies {
			return nil
		}
		granted[s] = true
	}

	for _, id := range studyIDs {
		if !granted[id] && !g.public[id] {
			return fmt.Errorf("%w: study %s", ErrForbidden, id)
		}
	}
	return nil
}

// CanReadSampleList resolves the owning study of a sample list and checks it.
// Resolver errors, including not-found errors, are returned as-is.
func (g *StudyGuard) CanReadSampleList(ctx context.Context, sampleListID string) error {
	if g.resolver == nil {
		return fmt.Errorf("%w: sample list %s cannot be resolved", ErrForbidden, sampleListID)
	}
	studyID, err := g.resolver.SampleListStudyID(ctx, sampleListID)
	if err != nil {
		return err
	}
	return g.CanReadStudies(ctx, studyID)
}
