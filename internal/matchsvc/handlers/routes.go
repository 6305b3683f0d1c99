package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
)

// UPDATE /match is kept for old clients
const methodUpdate = "UPDATE"

func init() {
	chi.RegisterMethod(methodUpdate)
}

// fileServed is implemented by image stores whose files can be served from
// local disk.
type fileServed interface {
	Dir() string
	Prefix() string
}

func (h *Handler) SetRoutes(r chi.Router) {
	r.Get("/health", h.HealthHandler)

	r.Route("/match", func(r chi.Router) {
		r.Post("/", h.ListMatches)
		r.Put("/", h.CreateMatch)
		r.Method(methodUpdate, "/", http.HandlerFunc(h.BulkUpdate))

		r.Route("/{gameId}", func(r chi.Router) {
			r.Get("/", h.GetMatch)
			r.Put("/", h.UpdateMatch)
			r.Delete("/", h.DeleteMatch)
			r.Get("/tally", h.Tally)
		})
	})

	vote := r.With()
	if h.opts.VoteRateLimit > 0 {
		vote = r.With(httprate.LimitByIP(h.opts.VoteRateLimit, 1*time.Minute))
	}
	vote.Post("/vote", h.CastVote)

	r.Post("/image", h.UploadImage)
	r.Get("/image", h.ListImages)

	if fs, ok := h.images.(fileServed); ok {
		prefix := "/" + strings.Trim(fs.Prefix(), "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(fs.Dir()))))
	}
}
