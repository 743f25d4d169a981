package resume

import "testing"

func TestNextTitle(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		base     string
		want     string
	}{
		{
			name:     "no collision returns base",
			existing: []string{"Other Resume"},
			base:     "Acme Backend Resume",
			want:     "Acme Backend Resume",
		},
		{
			name:     "bare collision starts at 2",
			existing: []string{"Acme Backend Resume"},
			base:     "Acme Backend Resume",
			want:     "Acme Backend Resume (2)",
		},
		{
			name:     "suffixed collisions use max plus one",
			existing: []string{"T", "T (1)", "T (2)"},
			base:     "T",
			want:     "T (3)",
		},
		{
			name:     "gap in numbering still uses max",
			existing: []string{"T", "T (5)"},
			base:     "T",
			want:     "T (6)",
		},
		{
			name:     "suffix without bare title still collides",
			existing: []string{"T (3)"},
			base:     "T",
			want:     "T (4)",
		},
		{
			name:     "regex metacharacters in base are literal",
			existing: []string{"C++ Jobs (2024)", "C++ Jobs (2024) (2)"},
			base:     "C++ Jobs (2024)",
			want:     "C++ Jobs (2024) (3)",
		},
		{
			name:     "unrelated prefixed titles do not count",
			existing: []string{"T Extended", "T Extended (2)"},
			base:     "T",
			want:     "T",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextTitle(tt.existing, tt.base); got != tt.want {
				t.Fatalf("NextTitle(%v, %q) = %q, want %q", tt.existing, tt.base, got, tt.want)
			}
		})
	}
}

func TestNextCopyTitle(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		original string
		want     string
	}{
		{
			name:     "first copy",
			existing: []string{"T"},
			original: "T",
			want:     "T (Copy)",
		},
		{
			name:     "second copy numbered",
			existing: []string{"T", "T (Copy)"},
			original: "T",
			want:     "T (Copy 2)",
		},
		{
			name:     "further copies use max",
			existing: []string{"T", "T (Copy)", "T (Copy 2)", "T (Copy 7)"},
			original: "T",
			want:     "T (Copy 8)",
		},
		{
			name:     "copying a numbered title keeps it verbatim",
			existing: []string{"T (2)"},
			original: "T (2)",
			want:     "T (2) (Copy)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextCopyTitle(tt.existing, tt.original); got != tt.want {
				t.Fatalf("NextCopyTitle(%v, %q) = %q, want %q", tt.existing, tt.original, got, tt.want)
			}
		})
	}
}
