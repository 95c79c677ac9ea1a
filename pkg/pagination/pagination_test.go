package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestFromContext_Defaults(t *testing.T) {
	c, _ := newContext("/")

	p, err := FromContext(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PageSize != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", DefaultPageSize, p.PageSize)
	}
	if p.PageNumber != DefaultPageNumber {
		t.Errorf("expected default page number %d, got %d", DefaultPageNumber, p.PageNumber)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	c, _ := newContext("/?pageSize=50&pageNumber=3")

	p, err := FromContext(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PageSize != 50 {
		t.Errorf("expected page size 50, got %d", p.PageSize)
	}
	if p.PageNumber != 3 {
		t.Errorf("expected page number 3, got %d", p.PageNumber)
	}
	if p.Offset() != 150 {
		t.Errorf("expected offset 150, got %d", p.Offset())
	}
}

func TestFromContext_Bounds(t *testing.T) {
	tests := []struct {
		query   string
		wantErr bool
	}{
		{"/?pageSize=1", false},
		{"/?pageSize=10000000", false},
		{"/?pageSize=0", true},
		{"/?pageSize=-5", true},
		{"/?pageSize=10000001", true},
		{"/?pageNumber=0", false},
		{"/?pageNumber=99", false},
		{"/?pageNumber=-1", true},
		{"/?pageSize=abc", true},
		{"/?pageNumber=1.5", true},
		{"/?pageNumber=9223372036854775807", true},
		{"/?pageSize=1&pageNumber=9223372036854775807", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := newContext(tt.query)
			_, err := FromContext(c)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromContext(%s) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			}
		})
	}
}

func TestSetTotalCount(t *testing.T) {
	c, rec := newContext("/")
	SetTotalCount(c, 42)
	if got := rec.Header().Get(TotalCountHeader); got != "42" {
		t.Errorf("expected total-count 42, got %q", got)
	}
}
