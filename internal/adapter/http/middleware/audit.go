package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"paylor/internal/core/domain"
	"paylor/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditedRoutes maps "METHOD route" to the audit action it produces. Payment
// initiation and reconciliation are audited by the payment service.
var auditedRoutes = map[string]auditRoute{
	"POST /public/merchants/register": {domain.AuditActionRegister, "merchant"},
	"POST /public/auth/login":         {domain.AuditActionLogin, "session"},
	"POST /merchants/channels":        {domain.AuditActionCreateChannel, "channel"},
	"POST /merchants/consents":        {domain.AuditActionRecordConsent, "consent"},
}

// AuditLog records successful writes on audited routes after the handler ran.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		route, ok := auditedRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var merchantID *uuid.UUID
		if id, ok := MerchantID(c); ok {
			merchantID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"requestId": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			MerchantID:   merchantID,
			Action:       route.action,
			ResourceType: route.resourceType,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
