package tracker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"reviewstats.app/listener/internal/tracker"
)

var _ = Describe("JiraTracker", func() {
	var (
		ctx    context.Context
		server *httptest.Server
		t      tracker.Tracker
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, pass, ok := r.BasicAuth(); !ok || user != "stats" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/rest/api/2/issue/ABC-123":
				if r.URL.Query().Get("fields") != "issuetype" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				_, _ = w.Write([]byte(`{"id":"10001","key":"ABC-123","fields":{"issuetype":{"id":"1","name":"Bug"}}}`))
			case "/rest/api/2/issue/ABC-500":
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"errorMessages":["boom"]}`))
			default:
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errorMessages":["Issue does not exist"]}`))
			}
		}))
		DeferCleanup(server.Close)

		var err error
		t, err = tracker.NewJiraTracker(tracker.JiraConfig{URL: server.URL, Username: "stats", Password: "secret"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns the issue type name", func() {
		name, err := t.IssueType(ctx, "ABC-123")
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("Bug"))
	})

	It("maps 404 to ErrNotFound", func() {
		_, err := t.IssueType(ctx, "ABC-404")
		Expect(err).To(MatchError(tracker.ErrNotFound))
	})

	It("returns other failures as plain errors", func() {
		_, err := t.IssueType(ctx, "ABC-500")
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(tracker.ErrNotFound))
	})
})

var _ = Describe("GitLabTracker", func() {
	var (
		ctx    context.Context
		server *httptest.Server
		t      tracker.Tracker
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("PRIVATE-TOKEN") != "glpat-test" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			switch {
			case strings.HasSuffix(r.URL.Path, "/issues/123"):
				_, _ = w.Write([]byte(`{"id":1,"iid":123,"title":"Login broken","labels":["priority::high","type::bug"]}`))
			case strings.HasSuffix(r.URL.Path, "/issues/7"):
				_, _ = w.Write([]byte(`{"id":2,"iid":7,"title":"Untyped","labels":["backend"]}`))
			default:
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"message":"404 Not found"}`))
			}
		}))
		DeferCleanup(server.Close)

		var err error
		t, err = tracker.NewGitLabTracker(tracker.GitLabConfig{
			URL:      server.URL,
			Token:    "glpat-test",
			Projects: map[string]string{"ABC": "group/abc"},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("reads the type from the scoped type label", func() {
		name, err := t.IssueType(ctx, "ABC-123")
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("bug"))
	})

	It("defaults to issue without a type label", func() {
		name, err := t.IssueType(ctx, "ABC-7")
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("issue"))
	})

	It("maps 404 to ErrNotFound", func() {
		_, err := t.IssueType(ctx, "ABC-999")
		Expect(err).To(MatchError(tracker.ErrNotFound))
	})

	It("reports keys without a configured project as not found", func() {
		_, err := t.IssueType(ctx, "XYZ-1")
		Expect(err).To(MatchError(tracker.ErrNotFound))
	})
})
