package session

import (
	"testing"
	"time"
)

func TestGetOrCreateAndTouch(t *testing.T) {
	st := NewStore(time.Hour)
	defer st.Stop()

	s := st.GetOrCreate("")
	if s.ID == "" {
		t.Fatal("expected a generated session id")
	}

	again := st.GetOrCreate(s.ID)
	if again.ID != s.ID {
		t.Fatalf("expected same session to be returned, got %s vs %s", again.ID, s.ID)
	}
	if st.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", st.Count())
	}
}

func TestExpiredSessionIsRecreated(t *testing.T) {
	st := NewStore(time.Millisecond)
	defer st.Stop()

	s := st.GetOrCreate("")
	time.Sleep(5 * time.Millisecond)

	again := st.GetOrCreate(s.ID)
	if again.ID == s.ID {
		t.Fatal("expected expired session to be replaced by a fresh one")
	}
}

func TestSetCurrentPageAndCookies(t *testing.T) {
	st := NewStore(time.Hour)
	defer st.Stop()

	s := st.GetOrCreate("")
	s.SetCurrentPage("https://ex.com/page")
	if s.GetCurrentPage() != "https://ex.com/page" {
		t.Fatal("current page not recorded")
	}

	s.StoreCookies("ex.com", []string{"id=42; Domain=.ex.com; Path=/; Max-Age=60"})
	if s.CookiesFor("ex.com", "/next") != "id=42" {
		t.Fatal("cookie not retrievable after StoreCookies")
	}
}

func TestDelete(t *testing.T) {
	st := NewStore(time.Hour)
	defer st.Stop()

	s := st.GetOrCreate("")
	st.Delete(s.ID)
	if st.Get(s.ID) != nil {
		t.Fatal("expected session to be gone after Delete")
	}
	// idempotent
	st.Delete(s.ID)
}
