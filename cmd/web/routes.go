package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/httputil"
	"github.com/AdamBeresnev/championship-engine/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type resultRequest struct {
	WinnerID   *int64                  `json:"winner_id"`
	ResultType championship.ResultType `json:"result_type"`
}

type resolutionResponse struct {
	MatchID   string `json:"match_id"`
	Resolved  bool   `json:"resolved"`
	Player1ID *int64 `json:"player1_id"`
	Player2ID *int64 `json:"player2_id"`
	Reason    string `json:"reason,omitempty"`
}

func newRouter(championships *service.ChampionshipService, origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/championships", func(w http.ResponseWriter, r *http.Request) {
		var in service.ChampionshipInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			httputil.BadRequest(w, "Invalid JSON body", err)
			return
		}
		c, err := championships.CreateChampionship(r.Context(), in)
		if err != nil {
			httputil.Error(w, "Failed to create championship", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, c)
	})

	r.Route("/championships/{id}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			c, err := championships.GetChampionship(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to get championship", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, c)
		})

		r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			result, err := championships.StartChampionship(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to start championship", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, result)
		})

		r.Get("/participants", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			participants, err := championships.ListParticipants(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to list participants", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, participants)
		})

		r.Post("/participants/{participantID}/withdraw", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			participantID, err := strconv.ParseInt(chi.URLParam(r, "participantID"), 10, 64)
			if err != nil {
				httputil.BadRequest(w, "Invalid participant ID", err)
				return
			}
			if err := championships.WithdrawParticipant(r.Context(), id, participantID); err != nil {
				httputil.Error(w, "Failed to withdraw participant", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/rounds", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			rounds, err := championships.ListRounds(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to list rounds", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, rounds)
		})

		r.Post("/rounds/{number}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			number, err := strconv.Atoi(chi.URLParam(r, "number"))
			if err != nil {
				httputil.BadRequest(w, "Invalid round number", err)
				return
			}
			result, err := championships.GenerateRound(r.Context(), id, number)
			if err != nil {
				httputil.Error(w, "Failed to generate round", err)
				return
			}
			status := http.StatusCreated
			if result.AlreadyGenerated {
				status = http.StatusOK
			}
			httputil.WriteJSON(w, status, result)
		})

		r.Get("/matches", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			matches, err := championships.ListMatches(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to list matches", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, matches)
		})

		r.Get("/standings", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			var asOf *int
			if v := r.URL.Query().Get("as_of_round"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					httputil.BadRequest(w, "Invalid as_of_round", err)
					return
				}
				asOf = &n
			}
			standings, err := championships.GetStandings(r.Context(), id, asOf)
			if err != nil {
				httputil.Error(w, "Failed to get standings", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, standings)
		})
	})

	r.Route("/matches/{id}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			m, err := championships.GetMatch(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to get match", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, m)
		})

		r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			m, err := championships.StartMatch(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to start match", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, m)
		})

		r.Post("/result", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			var req resultRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httputil.BadRequest(w, "Invalid JSON body", err)
				return
			}
			m, err := championships.RecordMatchResult(r.Context(), id, req.WinnerID, req.ResultType)
			if err != nil {
				httputil.Error(w, "Failed to record result", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, m)
		})

		r.Get("/resolution", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			res, err := championships.ResolvePlaceholder(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to resolve placeholder", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, resolutionResponse{
				MatchID:   res.MatchID,
				Resolved:  res.Resolved,
				Player1ID: res.Player1ID,
				Player2ID: res.Player2ID,
				Reason:    res.ReasonText(),
			})
		})
	})

	return r
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}
