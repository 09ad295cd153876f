package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"momolearn-backend/internal/middleware"
)

type ticketIssuer interface {
	Issue(userID uuid.UUID) (string, error)
	TTL() time.Duration
}

type EventsHandler struct {
	tickets ticketIssuer
}

func NewEventsHandler(tickets ticketIssuer) *EventsHandler {
	return &EventsHandler{tickets: tickets}
}

type ticketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expiresIn"`
}

// Ticket issues a short-lived credential for GET /ws?ticket=...
func (h *EventsHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.tickets.Issue(middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketResponse{
		Ticket:    ticket,
		ExpiresIn: int(h.tickets.TTL().Seconds()),
	})
}
