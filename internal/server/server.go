// Package server is the Query Server: parses HTTP params, maps
// username→uid, and renders recommendation results as JSON using a
// fixed error envelope contract.
package server

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"lotus/internal/cache"
	"lotus/internal/framebuilder"
	"lotus/internal/ledger"
	"lotus/internal/lotuserr"
	"lotus/internal/recommender"
)

// maxResults is the transport-level truncation applied to a
// recommendation list before it is serialized.
const maxResults = 500

// Server wraps a loaded frame and recommender behind a fiber app.
type Server struct {
	app    *fiber.App
	frame  *framebuilder.Frame
	rec    *recommender.Recommender
	cache  *cache.Cache
	ledger *ledger.Ledger
	log    *slog.Logger

	tagIndexByName map[string]uint16
}

// New builds the server's routes.
func New(frame *framebuilder.Frame, rec *recommender.Recommender, c *cache.Cache, l *ledger.Ledger, log *slog.Logger) *Server {
	tagIndexByName := make(map[string]uint16, len(frame.GetTags()))
	for i, t := range frame.GetTags() {
		tagIndexByName[t] = uint16(i)
	}

	s := &Server{
		app:            fiber.New(),
		frame:          frame,
		rec:            rec,
		cache:          c,
		ledger:         l,
		log:            log,
		tagIndexByName: tagIndexByName,
	}

	s.app.Get("/recommendations", s.handleRecommendations)
	s.app.Get("/tags", s.handleTags)
	s.app.Get("/users", s.handleUsers)
	return s
}

// Listen starts serving on addr, blocking until the app stops.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

type recommendedPage struct {
	Pid    uint64  `json:"pid"`
	URL    string  `json:"url"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

type errorEnvelope struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

func (s *Server) handleRecommendations(c *fiber.Ctx) error {
	start := time.Now()

	username := c.Query("user")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorEnvelope{Type: "error", Code: "NO_USER"})
	}

	uid, _, err := s.frame.GetUserByUsername(username)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(errorEnvelope{Type: "error", Code: "NO_USER"})
	}

	requiredTags, err := s.parseTags(c.Query("tags"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorEnvelope{Type: "error", Code: "USER_PARSE_ERROR"})
	}
	externalBans, err := parseUint64CSV(c.Query("bans"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorEnvelope{Type: "error", Code: "USER_PARSE_ERROR"})
	}

	ctx := c.Context()
	key := cache.Key(uid, requiredTags, externalBans)
	recs, hit := s.cache.Get(ctx, key)
	if !hit {
		recs, err = s.rec.GetRecommendationsByUID(ctx, uid, requiredTags, externalBans)
		s.ledger.RecordQuery(ctx, uid, len(requiredTags), len(externalBans), len(recs), time.Since(start), err)
		if err != nil {
			return c.Status(recommenderErrorStatus(err)).JSON(errorEnvelope{Type: "error", Code: "RECOMMENDER_ERROR"})
		}
		s.cache.Set(ctx, key, recs)
	}

	recs = truncateResults(recs)

	pages := make([]recommendedPage, 0, len(recs))
	for _, r := range recs {
		page, err := s.frame.GetPageByPid(r.Pid)
		if err != nil {
			continue
		}
		pages = append(pages, recommendedPage{Pid: page.Pid, URL: page.URL, Name: page.Name, Weight: r.Weight})
	}
	return c.JSON(pages)
}

// recommenderErrorStatus maps a recommender error to its HTTP status:
// a Bounds error means the query was out of range (no such retained
// user), anything else is an internal failure.
func recommenderErrorStatus(err error) int {
	if lotuserr.Is(err, lotuserr.Bounds) {
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// truncateResults caps recs at maxResults.
func truncateResults(recs []recommender.Recommendation) []recommender.Recommendation {
	if len(recs) > maxResults {
		return recs[:maxResults]
	}
	return recs
}

func (s *Server) handleTags(c *fiber.Ctx) error {
	return c.JSON(s.frame.GetTags())
}

func (s *Server) handleUsers(c *fiber.Ctx) error {
	return c.JSON(s.frame.GetUsersList())
}

func (s *Server) parseTags(csv string) ([]uint16, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]uint16, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		idx, ok := s.tagIndexByName[p]
		if !ok {
			return nil, lotuserr.New(lotuserr.Bounds, "server.parseTags", nil)
		}
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func parseUint64CSV(csv string) ([]uint64, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
