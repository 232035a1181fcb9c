package models

import (
	"math"
	"testing"
)

func TestOffset(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        int
	}{
		{"first page", 1, 20, 0},
		{"unset page", 0, 20, 0},
		{"third page", 3, 10, 20},
		{"huge page stays positive", math.MaxInt / 2, MaxPageLimit, (MaxPage - 1) * MaxPageLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Offset(tt.page, tt.limit); got != tt.want {
				t.Fatalf("Offset(%d, %d) = %d, want %d", tt.page, tt.limit, got, tt.want)
			}
		})
	}
}

func TestNewPageMeta(t *testing.T) {
	meta := NewPageMeta(21, 2, 10)
	if meta.TotalPages != 3 || !meta.HasNext || !meta.HasPrevious {
		t.Fatalf("middle page meta = %+v", meta)
	}

	last := NewPageMeta(20, 2, 10)
	if last.HasNext {
		t.Fatalf("last page must not have a next page: %+v", last)
	}

	far := NewPageMeta(5, math.MaxInt/2, MaxPageLimit)
	if far.HasNext {
		t.Fatalf("page past the end must not have a next page: %+v", far)
	}
}
