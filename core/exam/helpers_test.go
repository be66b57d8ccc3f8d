package exam

import (
	"testing"

	"github.com/volatiletech/null/v8"
)

func TestRotate(t *testing.T) {
	users := []User{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	tests := []struct {
		name    string
		offset  int
		wantIDs []int
	}{
		{name: "offset 1", offset: 1, wantIDs: []int{2, 3, 4, 1}},
		{name: "offset 2", offset: 2, wantIDs: []int{3, 4, 1, 2}},
		{name: "offset 3", offset: 3, wantIDs: []int{4, 1, 2, 3}},
		{name: "full turn", offset: 4, wantIDs: []int{1, 2, 3, 4}},
		{name: "offset wraps", offset: 5, wantIDs: []int{2, 3, 4, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rotate(users, tt.offset)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("rotate() len = %d, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("rotate()[%d].ID = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}

	if got := rotate(nil, 1); got != nil {
		t.Errorf("rotate(nil) = %v, want nil", got)
	}
}

// rotation by any offset in [1, len-1] must never map an index to itself;
// that is the whole no-self-review guarantee.
func TestRotate_neverMapsToSelf(t *testing.T) {
	for n := 2; n <= 6; n++ {
		users := make([]User, 0, n)
		for i := 0; i < n; i++ {
			users = append(users, User{ID: i + 1})
		}
		for offset := 1; offset < n; offset++ {
			rotated := rotate(users, offset)
			for i := range users {
				if rotated[i].ID == users[i].ID {
					t.Errorf("n=%d offset=%d: index %d maps to itself", n, offset, i)
				}
			}
		}
	}
}

func TestGradeAnswer(t *testing.T) {
	tests := []struct {
		name   string
		grades []int
		want   int
	}{
		{name: "single", grades: []int{7}, want: 7},
		{name: "exact mean", grades: []int{4, 6}, want: 5},
		{name: "rounds half up", grades: []int{4, 5}, want: 5},
		{name: "rounds down", grades: []int{4, 4, 5}, want: 4},
		{name: "all max", grades: []int{10, 10, 10}, want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			revs := make([]Review, 0, len(tt.grades))
			for _, g := range tt.grades {
				revs = append(revs, Review{Grade: g})
			}
			if got := gradeAnswer(revs); got != tt.want {
				t.Errorf("gradeAnswer(%v) = %d, want %d", tt.grades, got, tt.want)
			}
		})
	}
}

func TestRoundDiv(t *testing.T) {
	tests := []struct {
		sum, n, want int
	}{
		{10, 2, 5},
		{9, 2, 5},
		{7, 3, 2},
		{8, 3, 3},
		{0, 3, 0},
	}
	for _, tt := range tests {
		if got := roundDiv(tt.sum, tt.n); got != tt.want {
			t.Errorf("roundDiv(%d, %d) = %d, want %d", tt.sum, tt.n, got, tt.want)
		}
	}
}

func TestJoinInts(t *testing.T) {
	if got := joinInts([]int{1, 2, 3}); got != "1, 2, 3" {
		t.Errorf("joinInts() = %q, want %q", got, "1, 2, 3")
	}
	if got := joinInts(nil); got != "" {
		t.Errorf("joinInts(nil) = %q, want empty", got)
	}
}

func TestUser_DisplayName(t *testing.T) {
	usr := User{ExternalID: 42}
	if got := usr.DisplayName(); got != "42" {
		t.Errorf("DisplayName() = %q, want %q", got, "42")
	}
	usr.Name = null.StringFrom("alice")
	if got := usr.DisplayName(); got != "alice" {
		t.Errorf("DisplayName() = %q, want %q", got, "alice")
	}
}

func TestNewReview_Validate(t *testing.T) {
	tests := []struct {
		name    string
		review  NewReview
		wantErr bool
	}{
		{name: "valid", review: NewReview{AssignmentID: 1, Grade: 5, Text: "ok"}},
		{name: "grade too low", review: NewReview{AssignmentID: 1, Grade: 0, Text: "ok"}, wantErr: true},
		{name: "grade too high", review: NewReview{AssignmentID: 1, Grade: 11, Text: "ok"}, wantErr: true},
		{name: "grade negative", review: NewReview{AssignmentID: 1, Grade: -3, Text: "ok"}, wantErr: true},
		{name: "missing text", review: NewReview{AssignmentID: 1, Grade: 5}, wantErr: true},
		{name: "missing assignment", review: NewReview{Grade: 5, Text: "ok"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.review.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
