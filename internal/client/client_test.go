package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-authoring/internal/archive"
	"github.com/stemsi/exstem-authoring/internal/submission"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

func newProblemClient(t *testing.T, h http.HandlerFunc) *ProblemClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewProblemClient(srv.URL+"/", 5*time.Second, zerolog.Nop())
}

func TestCreateProblemStreamsMultipartAndForwardsToken(t *testing.T) {
	c := newProblemClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/problems", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "T", r.FormValue("title"))
		f, fh, err := r.FormFile("testcase_0")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "a.in", fh.Filename)
		assert.Equal(t, "1 2", string(data))

		_, _ = w.Write([]byte(`{"data":{"id":42}}`))
	})

	payload := &submission.CreatePayload{
		Fields: []submission.FormField{{Name: "title", Value: "T"}},
		Files: []submission.FilePart{{
			Field:    "testcase_0",
			Filename: "a.in",
			File:     upload.FromBytes("a.in", []byte("1 2")),
		}},
	}
	id, err := c.CreateProblem(WithToken(context.Background(), "tok"), payload)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestCreateProblemWithoutID(t *testing.T) {
	c := newProblemClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.CreateProblem(context.Background(), &submission.CreatePayload{})
	assert.ErrorIs(t, err, ErrNoProblemID)
}

func TestUpdateProblemSendsMetadataJSON(t *testing.T) {
	c := newProblemClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/problems/7", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["metadataUpdated"])
		assert.Equal(t, `["dp"]`, body["tags"])
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.UpdateProblem(context.Background(), 7, submission.MetadataPayload{
		Title: "T", Tags: `["dp"]`, Difficulty: 2, MetadataUpdated: true,
	})
	require.NoError(t, err)
}

func TestUpstreamErrorMessageIsVerbatim(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message field", `{"message":"title already taken"}`, "title already taken"},
		{"error string", `{"error":"quota exceeded"}`, "quota exceeded"},
		{"error object", `{"error":{"code":"X","message":"nested"}}`, "nested"},
		{"raw body", "gateway exploded", "gateway exploded"},
		{"empty body", "", "Unprocessable Entity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newProblemClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(tc.body))
			})
			err := c.UpdateProblem(context.Background(), 1, submission.MetadataPayload{})

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
			assert.Equal(t, tc.want, apiErr.Message)
		})
	}
}

func TestAssignmentLinkingIsIdempotent(t *testing.T) {
	c := newProblemClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/assignments/3/problems", r.URL.Path)
			var body map[string]int64
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, int64(9), body["problemId"])
			w.WriteHeader(http.StatusConflict)
		case http.MethodDelete:
			assert.Equal(t, "/assignments/3/problems/8", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	assert.NoError(t, c.AddProblemToAssignment(context.Background(), 3, 9))
	assert.NoError(t, c.RemoveProblemFromAssignment(context.Background(), 3, 8))
}

func TestAssignmentLinkingSurfacesOtherErrors(t *testing.T) {
	c := newProblemClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"not your assignment"}`))
	})
	err := c.AddProblemToAssignment(context.Background(), 3, 9)
	assert.Equal(t, http.StatusForbidden, StatusOf(err))
}

func TestParseArchiveSendsZipAndHints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/archives/parse", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "statement", r.FormValue("statementDir"))
		assert.Equal(t, ".tex,.md,.txt", r.FormValue("statementExtensions"))
		_, fh, err := r.FormFile("zipFile")
		require.NoError(t, err)
		assert.Equal(t, "p.zip", fh.Filename)

		_, _ = w.Write([]byte(`{"title":"Parsed","timeLimit":2,"tags":"[\"dp\"]","testCases":[{"name":"1","input":"a","output":"b","isSample":true}]}`))
	}))
	defer srv.Close()

	c := NewParserClient(srv.URL, 5*time.Second, zerolog.Nop())
	raw, err := c.ParseArchive(context.Background(), upload.FromBytes("p.zip", []byte("PK")), archive.DefaultHints)
	require.NoError(t, err)
	require.NotNil(t, raw.Title)
	assert.Equal(t, "Parsed", *raw.Title)
	assert.Equal(t, []string{"dp"}, archive.NormalizeTags(raw.Tags))
	require.Len(t, raw.TestCases, 1)
	assert.True(t, raw.TestCases[0].IsSample)
}

func TestParseProblemPostsHints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/problems/5/parse", r.URL.Path)
		var hints map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&hints))
		assert.Equal(t, "statement", hints["statementDir"])
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no archive"}`))
	}))
	defer srv.Close()

	c := NewParserClient(srv.URL, 5*time.Second, zerolog.Nop())
	_, err := c.ParseProblem(context.Background(), 5, archive.DefaultHints)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestRequestIDIsForwarded(t *testing.T) {
	c := newProblemClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := WithRequestID(context.Background(), "req-1")
	require.NoError(t, c.UpdateProblem(ctx, 7, submission.MetadataPayload{Title: "T"}))
}
