package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/brickplay-core/internal/audit"
)

// auditChanSize bounds entries waiting to be written. Requests never wait
// on the audit trail; overflow is dropped with a warning.
const auditChanSize = 256

// auditLog queues an entry attributed to subject for the writer goroutine.
func (s *Server) auditLog(action, entityType, entityID, subject string, details map[string]any) {
	if s.auditCh == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Subject:    subject,
		Source:     audit.SourceAPI,
		Details:    details,
	}
	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit queue full, dropping entry", "action", action, "entity_id", entityID)
	}
}

// drainAuditLog writes queued entries one at a time, since SQLite takes a
// single writer anyway. After ctx is done it flushes what is queued and
// closes auditDone.
func (s *Server) drainAuditLog(ctx context.Context) {
	defer close(s.auditDone)

	write := func(entry *audit.AuditLog) {
		// Shutdown must not lose entries already accepted.
		if err := s.auditRepo.Create(context.WithoutCancel(ctx), entry); err != nil {
			s.logger.Error("audit log write failed", "action", entry.Action, "error", err)
		}
	}

	for {
		select {
		case entry := <-s.auditCh:
			write(entry)
		case <-ctx.Done():
			for len(s.auditCh) > 0 {
				write(<-s.auditCh)
			}
			return
		}
	}
}

// handleListAuditLogs serves GET /audit. Filters: action, entity_type,
// entity_id, source, since (RFC3339). Paging: limit, offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Source:     q.Get("source"),
		Limit:      queryInt(q.Get("limit")),
		Offset:     queryInt(q.Get("offset")),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryInt parses a paging parameter. Malformed values count as unset,
// which the repository replaces with its defaults.
func queryInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
