package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChecker(t *testing.T) {
	c := NewChecker(nil)
	wild := NewChecker(map[string][]string{"ops": {"attempt:*"}})

	cases := []struct {
		c          *Checker
		role, perm string
		want       bool
	}{
		{c, "teacher", PermQuizCreate, true},
		{c, "student", PermQuizCreate, false},
		{c, "student", PermAttemptSubmit, true},
		{c, "student", PermAttemptReview, false},
		{c, "nobody", PermQuizJoin, false},
		{wild, "ops", PermAttemptReview, true},
		{wild, "ops", PermQuizCreate, false},
	}
	for _, tc := range cases {
		if got := tc.c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
	if !c.Any("student", PermAttemptReview, PermAttemptViewOwn) {
		t.Error("student should hold one of review/view-own")
	}
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	serve := func(h http.Handler, role string) int {
		req := httptest.NewRequest(http.MethodPost, "/quizzes", nil)
		if role != "" {
			req = req.WithContext(WithRole(req.Context(), role))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	create := Require(PermQuizCreate)(ok)
	results := RequireAny(PermAttemptViewOwn, PermAttemptReview)(ok)
	cases := []struct {
		name string
		h    http.Handler
		role string
		want int
	}{
		{"create/teacher", create, "teacher", http.StatusNoContent},
		{"create/student", create, "student", http.StatusForbidden},
		{"create/anonymous", create, "", http.StatusForbidden},
		{"results/teacher", results, "teacher", http.StatusNoContent},
		{"results/student", results, "student", http.StatusNoContent},
	}
	for _, tc := range cases {
		if got := serve(tc.h, tc.role); got != tc.want {
			t.Errorf("%s: status %d, want %d", tc.name, got, tc.want)
		}
	}
}
