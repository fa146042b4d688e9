package middleware

import (
	"encoding/json"
	"net/http"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type auditRoute struct {
	method string
	route  string
}

type auditTarget struct {
	action       domain.AuditAction
	resourceType string
}

// auditedRoutes keys on gin route templates, not raw paths.
var auditedRoutes = map[auditRoute]auditTarget{
	{http.MethodPost, "/api/v1/auth/register"}:  {domain.AuditActionRegister, "user"},
	{http.MethodPost, "/api/v1/auth/login"}:     {domain.AuditActionLogin, "session"},
	{http.MethodPost, "/api/v1/accounts"}:       {domain.AuditActionOpenAccount, "account"},
	{http.MethodDelete, "/api/v1/accounts/:id"}: {domain.AuditActionCloseAccount, "account"},
	{http.MethodPost, "/api/v1/transactions"}:   {domain.AuditActionTransfer, "transaction"},
}

// AuditLog creates an audit middleware that records successful write operations.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxResourceID),
			IPAddress:    c.ClientIP(),
		}
		if id, ok := UserID(c); ok {
			entry.UserID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	target, ok := auditedRoutes[auditRoute{method: method, route: route}]
	if !ok {
		return "", ""
	}
	return target.action, target.resourceType
}
