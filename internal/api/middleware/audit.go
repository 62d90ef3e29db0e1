package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"strings"

	"casedesk/internal/models"
	"casedesk/internal/services"

	"github.com/gin-gonic/gin"
)

const auditContextKey = "audit_context"

// AuditContextMiddleware derives the per-request attribution bundle once,
// after authentication and before any handler can mutate the request. For
// PUT/PATCH requests the original body is captured here so the update diff
// sees what the client actually sent.
func AuditContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actx := services.SystemContext()
		if u, exists := c.Get("user"); exists {
			if user, ok := u.(*models.User); ok {
				actx.UserID = &user.ID
				actx.UserEmail = user.Email
				actx.UserName = user.FullName
				actx.UserRole = user.Role
			}
		}

		route := services.ResolveRouteEntity(c.Request.URL.Path)
		actx.Module = route.Module
		actx.EntityType = route.EntityType
		actx.IPAddress = sourceAddress(c)
		actx.UserAgent = c.GetHeader("User-Agent")
		actx.RequestPath = c.Request.URL.Path
		actx.RequestMethod = c.Request.Method

		if s, exists := c.Get("session"); exists {
			if sess, ok := s.(*models.Session); ok {
				actx.SessionID = sess.ID
			}
		}
		if actx.SessionID == "" {
			actx.SessionID = c.GetHeader("X-Session-Id")
		}

		if c.Request.Method == "PUT" || c.Request.Method == "PATCH" {
			if raw, err := c.GetRawData(); err == nil {
				c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
				var body map[string]any
				if json.Unmarshal(raw, &body) == nil {
					actx.RequestBody = body
				}
			}
		}

		c.Set(auditContextKey, actx)
		c.Next()
	}
}

// AuditContextFrom returns the request's attribution bundle, or a sentinel
// system context when the middleware did not run.
func AuditContextFrom(c *gin.Context) services.AuditContext {
	if v, exists := c.Get(auditContextKey); exists {
		if actx, ok := v.(services.AuditContext); ok {
			return actx
		}
	}
	return services.SystemContext()
}

// sourceAddress picks the client address: direct client IP, then the first
// forwarded-for entry, then the real-IP header, then the raw connection
// address, else "unknown".
func sourceAddress(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := c.GetHeader("X-Real-Ip"); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil && host != "" {
		return host
	}
	return "unknown"
}

// bodyRecorder tees the response body so the interceptors can read what the
// handler sent. Replaces the source pattern of monkey-patching the response
// object's send method.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// RecordCreate audits a successful create from the response body: every field
// of the new entity becomes an ADDED change.
func RecordCreate(recorder *services.AuditRecorder, entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		w := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		body := decodeBody(w.buf.Bytes())
		if body == nil {
			return
		}

		actx := AuditContextFrom(c)
		changes := services.DiffCreate(body)
		recorder.Record(c.Request.Context(), actx, models.ActionCreate,
			entityType, snapshotID(body), snapshotName(body, entityType, snapshotID(body)),
			status, "", changes, nil)
	}
}

// RecordUpdate snapshots the prior state before the handler runs, then audits
// a successful update as a diff of prior vs the captured request body. No-op
// updates produce no audit row. When the prior snapshot is unavailable only
// the post-state is recorded.
func RecordUpdate(recorder *services.AuditRecorder, entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		prior, _ := recorder.Snapshot(entityType, id)

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		actx := AuditContextFrom(c)
		changes := services.DiffUpdate(prior, actx.RequestBody)
		if len(changes) == 0 {
			return
		}

		recorder.Record(c.Request.Context(), actx, models.ActionUpdate,
			entityType, id, snapshotName(prior, entityType, id),
			status, "", changes, actx.RequestBody)
	}
}

// RecordDelete snapshots the prior state before the handler runs, then audits
// a successful delete: every field of the prior snapshot becomes a REMOVED
// change. The response body may no longer carry the entity, so identity comes
// from the snapshot.
func RecordDelete(recorder *services.AuditRecorder, entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		prior, ok := recorder.Snapshot(entityType, id)

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 || !ok {
			return
		}

		actx := AuditContextFrom(c)
		changes := services.DiffDelete(prior)
		recorder.Record(c.Request.Context(), actx, models.ActionDelete,
			entityType, id, snapshotName(prior, entityType, id),
			status, "", changes, nil)
	}
}

func decodeBody(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

func snapshotID(snapshot map[string]any) string {
	if snapshot == nil {
		return ""
	}
	switch v := snapshot["id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// snapshotName picks a human label for the entity, falling back to type:id.
func snapshotName(snapshot map[string]any, entityType, id string) string {
	for _, key := range []string{"title", "name", "username", "full_name"} {
		if v, ok := snapshot[key].(string); ok && v != "" {
			return v
		}
	}
	return entityType + ":" + id
}
