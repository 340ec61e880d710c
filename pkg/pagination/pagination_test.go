package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext("/"))

	if p.Limit != 0 {
		t.Errorf("expected unbounded limit, got %d", p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(newContext("/?limit=50&offset=10"))

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(newContext("/?limit=100000"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_Negative(t *testing.T) {
	p := FromContext(newContext("/?limit=-3&offset=-5"))
	if p.Limit != 0 || p.Offset != 0 {
		t.Errorf("expected negatives to be clamped, got %+v", p)
	}
}

func TestPage(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name    string
		params  Params
		want    []string
		hasMore bool
	}{
		{"everything", Params{}, []string{"a", "b", "c", "d", "e"}, false},
		{"first page", Params{Limit: 2}, []string{"a", "b"}, true},
		{"middle page", Params{Limit: 2, Offset: 2}, []string{"c", "d"}, true},
		{"last page", Params{Limit: 2, Offset: 4}, []string{"e"}, false},
		{"past the end", Params{Limit: 2, Offset: 9}, []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Page(items, tt.params)
			got := resp.Data.([]string)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
			if resp.Total != 5 {
				t.Errorf("expected total 5, got %d", resp.Total)
			}
			if resp.HasMore != tt.hasMore {
				t.Errorf("expected hasMore %v, got %v", tt.hasMore, resp.HasMore)
			}
		})
	}
}

func TestPage_NilInput(t *testing.T) {
	resp := Page[int](nil, Params{})
	got, ok := resp.Data.([]int)
	if !ok || got == nil {
		t.Errorf("expected empty non-nil slice, got %#v", resp.Data)
	}
}
