package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/planora-app/assistant-go/internal/cache"
	"github.com/planora-app/assistant-go/internal/config"
	"github.com/planora-app/assistant-go/internal/generate"
	"github.com/planora-app/assistant-go/internal/history"
	"github.com/planora-app/assistant-go/internal/llm"
	"github.com/planora-app/assistant-go/internal/logger"
	"github.com/planora-app/assistant-go/internal/session"
)

// registry hands out one session per conversation id. Sessions live for the
// process lifetime; the id doubles as the resume handle.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	store    session.Store
	gen      session.Generator
}

func (r *registry) get(req *http.Request) *session.Session {
	id := req.URL.Query().Get("conversation")

	r.mu.Lock()
	defer r.mu.Unlock()
	if id != "" {
		if s, ok := r.sessions[id]; ok {
			return s
		}
	}

	var s *session.Session
	if id != "" {
		// Known id from a previous process: rebind and reload its history.
		s = session.NewWithID(id, r.store, r.gen, nil)
		s.Resume(req.Context())
	} else {
		s = session.New(r.store, r.gen, nil)
	}
	r.sessions[s.ConversationID()] = s
	return s
}

type askResponse struct {
	ConversationID string            `json:"conversation_id"`
	Submitting     bool              `json:"submitting"`
	Messages       []session.Message `json:"messages"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	store := history.Open(cfg.Assistant.HistoryDBPath)
	defer store.Close()

	var resultCache generate.ResultCache
	if c, err := cache.Open(cfg.Assistant.CachePath, cfg.Assistant.CacheTTL); err != nil {
		logger.L.Warn("generation cache unavailable; results will not be reused", "path", cfg.Assistant.CachePath, "error", err)
	} else {
		resultCache = c
		defer c.Close()
	}

	llmClient := llm.NewClient(cfg.LLM)
	svc := generate.New(llmClient, *cfg, resultCache)
	defer svc.Close()

	reg := &registry{
		sessions: make(map[string]*session.Session),
		store:    store,
		gen:      svc,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /ask", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		sess := reg.get(r)
		sess.IncludeWeather(r.URL.Query().Get("weather") == "1")

		if err := sess.Submit(r.Context(), string(body)); err != nil {
			if errors.Is(err, session.ErrSubmissionPending) {
				http.Error(w, "a submission is already pending for this conversation", http.StatusConflict)
				return
			}
			logger.L.Error("submit failed", "error", err)
			http.Error(w, "failed to process request", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(askResponse{
			ConversationID: sess.ConversationID(),
			Submitting:     sess.Submitting(),
			Messages:       sess.Messages(),
		})
	})

	mux.HandleFunc("GET /conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		msgs, err := store.LoadConversation(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, "failed to load conversation", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": msgs})
	})

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", serverAddr)
	if err := http.ListenAndServe(serverAddr, mux); err != nil {
		logger.L.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}
