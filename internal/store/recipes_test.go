package store

import (
	"errors"
	"testing"
	"time"
)

func TestRecipeSubmitMonotonic(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateAgent("user-1", "")
	task, _ := s.CreateTask(a.ID, "Send Email", "", CategoryAdmin)

	r, err := s.CreateRecipe(&UIRecipe{TaskID: task.ID, Kind: RecipeForm, Title: "Recipient"})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	if r.IsSubmitted {
		t.Fatal("new recipe should be unsubmitted")
	}

	got, err := s.SubmitRecipe(r.ID, `{"to":"a@example.com"}`)
	if err != nil {
		t.Fatalf("SubmitRecipe: %v", err)
	}
	if !got.IsSubmitted || got.SubmittedAt == nil {
		t.Errorf("submit not recorded: %+v", got)
	}

	if _, err := s.SubmitRecipe(r.ID, `{"to":"b@example.com"}`); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("resubmit err = %v, want ErrAlreadySubmitted", err)
	}
	// Original data untouched.
	got, _ = s.GetRecipe(r.ID)
	if got.SubmittedData != `{"to":"a@example.com"}` {
		t.Errorf("submitted data overwritten: %q", got.SubmittedData)
	}
}

func TestRecipeNeedsOwner(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateRecipe(&UIRecipe{Kind: RecipeForm}); err == nil {
		t.Error("expected error for orphan recipe")
	}
}

func TestMergedSubmissionsLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateAgent("user-1", "")
	task, _ := s.CreateTask(a.ID, "Trip", "", CategoryPersonal)

	r1, _ := s.CreateRecipe(&UIRecipe{TaskID: task.ID, Kind: RecipeForm, Title: "Dates"})
	time.Sleep(2 * time.Millisecond)
	r2, _ := s.CreateRecipe(&UIRecipe{TaskID: task.ID, Kind: RecipePicker, Title: "City"})
	time.Sleep(2 * time.Millisecond)
	r3, _ := s.CreateRecipe(&UIRecipe{TaskID: task.ID, Kind: RecipeForm, Title: "Dates again"})

	if _, err := s.SubmitRecipe(r1.ID, `{"dates":"june","city":"rome"}`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitRecipe(r2.ID, `{"city":"paris"}`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitRecipe(r3.ID, `{"dates":"july"}`); err != nil {
		t.Fatal(err)
	}

	merged, err := s.MergedSubmissions(task.ID)
	if err != nil {
		t.Fatalf("MergedSubmissions: %v", err)
	}
	if merged["city"] != "paris" {
		t.Errorf("city = %v, want paris", merged["city"])
	}
	if merged["dates"] != "july" {
		t.Errorf("dates = %v, want july", merged["dates"])
	}
}

func TestMergedSubmissionsSkipsUnsubmittedAndMalformed(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateAgent("user-1", "")
	task, _ := s.CreateTask(a.ID, "Trip", "", CategoryPersonal)

	r1, _ := s.CreateRecipe(&UIRecipe{TaskID: task.ID, Kind: RecipeForm})
	if _, err := s.SubmitRecipe(r1.ID, `not json`); err != nil {
		t.Fatal(err)
	}
	r2, _ := s.CreateRecipe(&UIRecipe{TaskID: task.ID, Kind: RecipeForm})
	if _, err := s.SubmitRecipe(r2.ID, `{"ok":true}`); err != nil {
		t.Fatal(err)
	}
	_, _ = s.CreateRecipe(&UIRecipe{TaskID: task.ID, Kind: RecipeForm}) // never submitted

	merged, err := s.MergedSubmissions(task.ID)
	if err != nil {
		t.Fatalf("MergedSubmissions: %v", err)
	}
	if len(merged) != 1 || merged["ok"] != true {
		t.Errorf("merged = %v", merged)
	}
}
