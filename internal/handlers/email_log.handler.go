package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"

	"github.com/nimasrn/campaign-gateway/internal/model"
	xhttp "github.com/nimasrn/campaign-gateway/pkg/http"
)

type EmailLogService interface {
	List(ctx context.Context, f model.EmailLogFilter) ([]*model.EmailLog, int64, error)
}

type EmailLogHandler struct {
	svc EmailLogService
}

func RegisterEmailLogRoutes(e *router.Group, h *EmailLogHandler) {
	e.GET("/email-logs", h.ListEmailLogs)
}

func NewEmailLogHandler(logService EmailLogService) *EmailLogHandler {
	return &EmailLogHandler{
		svc: logService,
	}
}

type emailLogListResponse struct {
	Items []*model.EmailLog `json:"items"`
	Total int64             `json:"total"`
}

func (h *EmailLogHandler) ListEmailLogs(ctx *xhttp.RequestCtx) {
	var f model.EmailLogFilter

	if v := query(ctx, "campaign_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CampaignID = &id
		}
	}
	if v := query(ctx, "subscriber_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.SubscriberID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.EmailLogStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, emailLogListResponse{Items: items, Total: total})
}
