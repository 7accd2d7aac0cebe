package domain

import "testing"

func TestDraftValidate_EmptyText(t *testing.T) {
	d := Draft{Text: "   ", Category: CategoryWork}
	if err := d.Validate(); err != ErrEmptyText {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestDraftValidate_BadCategory(t *testing.T) {
	d := Draft{Text: "buy milk", Category: "chores"}
	if err := d.Validate(); err != ErrInvalidCategory {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestDraftValidate_Defaults(t *testing.T) {
	d := Draft{Text: " buy milk ", Category: CategoryShopping}
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if d.Text != "buy milk" {
		t.Fatalf("text not trimmed, got=%q", d.Text)
	}
	if d.CreatedAt != Today() {
		t.Fatalf("createdAt should default to today, got=%q", d.CreatedAt)
	}
	if d.Completed {
		t.Fatalf("completed should default to false")
	}
}

func TestDraftValidate_BadDate(t *testing.T) {
	d := Draft{Text: "x", Category: CategoryOther, DueDate: "12/31/2026"}
	if err := d.Validate(); err != ErrBadDate {
		t.Fatalf("expected ErrBadDate, got %v", err)
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range []Category{CategoryPersonal, CategoryWorkout, CategoryWork, CategoryShopping, CategoryOther} {
		if !c.Valid() {
			t.Fatalf("category %q should be valid", c)
		}
	}
	if Category("Work").Valid() {
		t.Fatalf("category match must be case sensitive")
	}
}

func TestDisplayLabel(t *testing.T) {
	cases := []struct {
		id   *Identity
		want string
	}{
		{&Identity{Name: "Jane Doe", Email: "jane@x.com"}, "Jane Doe"},
		{&Identity{Email: "jane@x.com"}, "jane"},
		{&Identity{}, FallbackLabel},
		{&Identity{Email: "@x.com"}, FallbackLabel},
		{nil, FallbackLabel},
	}
	for _, c := range cases {
		if got := DisplayLabel(c.id); got != c.want {
			t.Fatalf("DisplayLabel(%+v)=%q want=%q", c.id, got, c.want)
		}
	}
}
