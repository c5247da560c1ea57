package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"opdsgrab/internal/response"
	"opdsgrab/internal/storage/authors"
	"opdsgrab/internal/storage/books"
	"opdsgrab/internal/storage/fails"
	"opdsgrab/internal/storage/genres"
	"opdsgrab/internal/types"
)

const maxLimit = 200

func Handler(ar authors.Repository, br books.Repository, gr genres.Repository, fr fails.Repository,
	rr *response.Responder) http.Handler {

	r := chi.NewRouter()

	r.Get("/genres", func(w http.ResponseWriter, r *http.Request) {
		rows, err := gr.GetAll(r.Context())
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if rows == nil {
			rows = make([]string, 0)
		}

		rr.SendJson(w, r.Context(), struct {
			Titles []string `json:"titles"`
		}{Titles: rows})
	})

	r.Get("/authors", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		rows, err := ar.Search(r.Context(), q.Get("search"), getLimit(q, 10))
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if rows == nil {
			rows = make([]*types.Author, 0)
		}

		rr.SendJson(w, r.Context(), struct {
			Authors []*types.Author `json:"authors"`
		}{Authors: rows})
	})

	r.Get("/books", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var groupings []books.GroupingType
		for _, t := range getMulti("group", q) {
			switch g := books.GroupingType(t); g {
			case books.GroupByAuthor, books.GroupByGenres, books.GroupByLanguage:
				groupings = append(groupings, g)
			default:
				rr.RespondBadRequest(w, r.Context(), fmt.Errorf("unknown grouping %q", t))
				return
			}
		}

		genreIds, ok, err := getGenreIds(r.Context(), q, gr)
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		var rows []books.BookInGroup

		// none of the requested genres is known, so no book can match
		if ok {
			rows, err = br.Search(r.Context(), books.Filter{
				Query:          q.Get("search"),
				Author:         q.Get("author"),
				GenreIds:       genreIds,
				Language:       q.Get("language"),
				OnlyDownloaded: q.Get("downloaded") == "true",
			}, getLimit(q, 20), max(getIntOrDefault("offset", q, 0), 0), groupings...)

			if err != nil {
				rr.RespondAndLogError(w, r.Context(), err)
				return
			}
		}

		if rows == nil {
			rows = make([]books.BookInGroup, 0)
		}

		rr.SendJson(w, r.Context(), struct {
			Books []books.BookInGroup `json:"books"`
		}{Books: rows})
	})

	r.Get("/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := url.PathUnescape(chi.URLParam(r, "id"))
		if err != nil {
			rr.RespondBadRequest(w, r.Context(), fmt.Errorf("invalid book id: %w", err))
			return
		}

		book, err := br.GetById(r.Context(), id)
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if book == nil {
			rr.RespondNotFound(w, r.Context(), "book "+id)
			return
		}

		rr.SendJson(w, r.Context(), book)
	})

	r.Get("/fails", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var runId uuid.UUID
		if s := strings.TrimSpace(q.Get("run")); s != "" {
			var err error
			runId, err = uuid.Parse(s)
			if err != nil {
				rr.RespondBadRequest(w, r.Context(), fmt.Errorf("invalid run id: %w", err))
				return
			}
		}

		rows, err := fr.GetFails(r.Context(), runId, nil, uint(getLimit(q, 50)))
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if rows == nil {
			rows = make([]*fails.Record, 0)
		}

		rr.SendJson(w, r.Context(), struct {
			Fails []*fails.Record `json:"fails"`
		}{Fails: rows})
	})

	return r
}

// getGenreIds reports false when genres were requested but none of them is known.
func getGenreIds(ctx context.Context, q url.Values, gr genres.Repository) ([]uint16, bool, error) {
	genres_ := getMulti("genre", q)
	if len(genres_) == 0 {
		return nil, true, nil
	}

	gs, err := gr.GetIdByTitles(ctx, genres_...)
	if err != nil {
		return nil, false, err
	}

	var genreIds []uint16
	seen := make(map[uint16]struct{}, len(gs))
	for _, genreId := range gs {
		if _, ok := seen[genreId]; !ok {
			seen[genreId] = struct{}{}
			genreIds = append(genreIds, genreId)
		}
	}

	return genreIds, len(genreIds) > 0, nil
}

func getLimit(q url.Values, default_ int) int {
	limit := getIntOrDefault("limit", q, default_)
	if limit <= 0 {
		return default_
	}

	return min(limit, maxLimit)
}

func getIntOrDefault(key string, q url.Values, default_ int) int {
	if ls := q.Get(key); ls != "" {
		limit, err := strconv.Atoi(ls)
		if err == nil {
			return limit
		}
	}

	return default_
}

func getMulti(key string, q url.Values) []string {
	raw, ok := q[key]
	if !ok {
		return nil
	}

	vals := make([]string, 0, len(raw))
	for _, val := range raw {
		val = strings.TrimSpace(val)
		if val != "" {
			vals = append(vals, val)
		}
	}

	return vals
}
