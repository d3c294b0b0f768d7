package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/internal/repository"
	"github.com/nimasrn/campaign-gateway/internal/services"
	xhttp "github.com/nimasrn/campaign-gateway/pkg/http"
)

type CampaignService interface {
	Create(ctx context.Context, p model.CampaignCreateRequest, templateID *int64) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
	Stats(ctx context.Context, id int64) (*model.CampaignStats, error)
	Send(ctx context.Context, id int64, testMode bool) error
	SendTestEmail(ctx context.Context, id int64, email string) error
	Update(ctx context.Context, c *model.Campaign) error
	Delete(ctx context.Context, id int64) error
}

type CampaignHandler struct {
	svc CampaignService
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler) {
	e.POST("/campaigns", h.CreateCampaign)
	e.GET("/campaigns", h.ListCampaigns)
	e.GET("/campaigns/{id}", h.GetCampaign)
	e.PUT("/campaigns/{id}", h.UpdateCampaign)
	e.DELETE("/campaigns/{id}", h.DeleteCampaign)
	e.POST("/campaigns/{id}/send", h.SendCampaign)
	e.POST("/campaigns/{id}/send-test", h.SendTestEmail)
	e.GET("/campaigns/{id}/stats", h.GetCampaignStats)
}

func NewCampaignHandler(campaignService CampaignService) *CampaignHandler {
	return &CampaignHandler{
		svc: campaignService,
	}
}

type createCampaignRequest struct {
	Name        string     `json:"name"`
	Subject     string     `json:"subject"`
	BodyHTML    string     `json:"body_html"`
	BodyText    string     `json:"body_text"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	TemplateID  *int64     `json:"template_id"`
}

type updateCampaignRequest struct {
	Name        string     `json:"name"`
	Subject     string     `json:"subject"`
	BodyHTML    string     `json:"body_html"`
	BodyText    string     `json:"body_text"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type sendTestEmailRequest struct {
	Email string `json:"email"`
}

type campaignListResponse struct {
	Items []*model.Campaign `json:"items"`
	Total int64             `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	var req createCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.CampaignCreateRequest{
		Name:        req.Name,
		Subject:     req.Subject,
		BodyHTML:    req.BodyHTML,
		BodyText:    req.BodyText,
		ScheduledAt: req.ScheduledAt,
	}
	camp, err := h.svc.Create(ctx, p, req.TemplateID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, camp)
}

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	camp, err := h.svc.Get(ctx, id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, camp)
}

func (h *CampaignHandler) ListCampaigns(ctx *xhttp.RequestCtx) {
	var f model.CampaignFilter

	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.CampaignStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
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
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, campaignListResponse{Items: items, Total: total})
}

func (h *CampaignHandler) UpdateCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	var req updateCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	c := &model.Campaign{
		ID:          id,
		Name:        req.Name,
		Subject:     req.Subject,
		BodyHTML:    req.BodyHTML,
		BodyText:    req.BodyText,
		ScheduledAt: req.ScheduledAt,
	}
	if err := h.svc.Update(ctx, c); err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, c)
}

func (h *CampaignHandler) DeleteCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	if err := h.svc.Delete(ctx, id); err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "deleted"})
}

// SendCampaign queues the send and returns immediately. With ?test=1 the
// dispatcher delivers to the first few active subscribers only.
func (h *CampaignHandler) SendCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	testMode := query(ctx, "test") == "1" || strings.EqualFold(query(ctx, "test"), "true")

	if err := h.svc.Send(ctx, id, testMode); err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 202, map[string]any{"status": "queued", "campaign_id": id, "test_mode": testMode})
}

func (h *CampaignHandler) SendTestEmail(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	var req sendTestEmailRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	if err := h.svc.SendTestEmail(ctx, id, req.Email); err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 202, map[string]any{"status": "queued", "campaign_id": id, "email": req.Email})
}

func (h *CampaignHandler) GetCampaignStats(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	stats, err := h.svc.Stats(ctx, id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, stats)
}

/* -------------------------------- Helpers ------------------------------------ */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// respondServiceError maps service sentinels onto HTTP statuses.
func respondServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, repository.ErrCampaignNotFound),
		errors.Is(err, repository.ErrSubscriberNotFound),
		errors.Is(err, repository.ErrTemplateNotFound),
		errors.Is(err, services.ErrInvalidToken):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		writeError(ctx, 409, err.Error())
	case errors.Is(err, repository.ErrDuplicateEmail):
		writeError(ctx, 409, err.Error())
	default:
		writeError(ctx, 400, err.Error())
	}
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
