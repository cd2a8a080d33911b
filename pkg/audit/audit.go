package audit

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/sleads/portal/pkg/contextkeys"
	"github.com/sleads/portal/pkg/observability"
)

// Entry is one audit record
type Entry struct {
	ID       int64     `json:"id"`
	Event    string    `json:"event"`
	Entity   string    `json:"entity,omitempty"`
	EntityID *int64    `json:"entity_id,omitempty"`
	UserID   string    `json:"user_id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	LoggedAt time.Time `json:"logged_at"`
}

// Service writes audit records to Postgres. Every write is best effort:
// a failed insert is logged and never fails the calling operation.
type Service struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewService creates a new audit service. logger may be nil.
func NewService(db *sql.DB, logger *observability.Logger) *Service {
	return &Service{db: db, logger: logger}
}

func (s *Service) record(ctx context.Context, entry *Entry) {
	query := `
		INSERT INTO audit_log (event, entity, entity_id, user_id, detail)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, entry.Event, entry.Entity, entry.EntityID, entry.UserID, entry.Detail)
	if err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("event", entry.Event).Warn("failed to write audit record")
	}
}

// RecordTransition records a billing document status transition
func (s *Service) RecordTransition(ctx context.Context, entity string, entityID int64, from, to string) {
	s.record(ctx, &Entry{
		Event:    "status_transition",
		Entity:   entity,
		EntityID: &entityID,
		Detail:   from + " -> " + to,
	})
}

// RecordAuthFailure records a rejected request
func (s *Service) RecordAuthFailure(ctx context.Context, userID, path string, status int) {
	event := "authorization_failure"
	if status == http.StatusUnauthorized {
		event = "authentication_failure"
	}
	s.record(ctx, &Entry{
		Event:  event,
		UserID: userID,
		Detail: path,
	})
}

// FailureMiddleware observes responses and records 401s and 403s
func (s *Service) FailureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		if recorder.status == http.StatusUnauthorized || recorder.status == http.StatusForbidden {
			userID, _ := r.Context().Value(contextkeys.UserIDKey).(string)
			s.RecordAuthFailure(r.Context(), userID, r.URL.Path, recorder.status)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
