package handlers

import (
	"context"

	"github.com/fasthttp/router"

	"github.com/nimasrn/campaign-gateway/internal/model"
	xhttp "github.com/nimasrn/campaign-gateway/pkg/http"
)

type TemplateService interface {
	Create(ctx context.Context, p model.TemplateCreateRequest) (*model.EmailTemplate, error)
	Get(ctx context.Context, id int64) (*model.EmailTemplate, error)
	List(ctx context.Context) ([]*model.EmailTemplate, error)
	Update(ctx context.Context, t *model.EmailTemplate) error
	Delete(ctx context.Context, id int64) error
	Preview(ctx context.Context, id int64, sampleEmail, sampleName string) (*model.OutboundEmail, error)
}

type TemplateHandler struct {
	svc TemplateService
}

func RegisterTemplateRoutes(e *router.Group, h *TemplateHandler) {
	e.POST("/templates", h.CreateTemplate)
	e.GET("/templates", h.ListTemplates)
	e.GET("/templates/{id}", h.GetTemplate)
	e.PUT("/templates/{id}", h.UpdateTemplate)
	e.DELETE("/templates/{id}", h.DeleteTemplate)
	e.POST("/templates/{id}/preview", h.PreviewTemplate)
}

func NewTemplateHandler(templateService TemplateService) *TemplateHandler {
	return &TemplateHandler{
		svc: templateService,
	}
}

type templateRequest struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	BodyText string `json:"body_text"`
}

type previewRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *TemplateHandler) CreateTemplate(ctx *xhttp.RequestCtx) {
	var req templateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	tpl, err := h.svc.Create(ctx, model.TemplateCreateRequest{
		Name:     req.Name,
		Subject:  req.Subject,
		BodyHTML: req.BodyHTML,
		BodyText: req.BodyText,
	})
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, tpl)
}

func (h *TemplateHandler) GetTemplate(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid template id")
		return
	}

	tpl, err := h.svc.Get(ctx, id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, tpl)
}

func (h *TemplateHandler) ListTemplates(ctx *xhttp.RequestCtx) {
	items, err := h.svc.List(ctx)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, items)
}

func (h *TemplateHandler) UpdateTemplate(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid template id")
		return
	}

	var req templateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	tpl := &model.EmailTemplate{
		ID:       id,
		Name:     req.Name,
		Subject:  req.Subject,
		BodyHTML: req.BodyHTML,
		BodyText: req.BodyText,
	}
	if err := h.svc.Update(ctx, tpl); err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, tpl)
}

func (h *TemplateHandler) DeleteTemplate(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid template id")
		return
	}

	if err := h.svc.Delete(ctx, id); err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "deleted"})
}

func (h *TemplateHandler) PreviewTemplate(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid template id")
		return
	}

	req := previewRequest{Email: "preview@example.com"}
	if body := ctx.PostBody(); len(body) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, 400, "invalid JSON: "+err.Error())
			return
		}
	}

	out, err := h.svc.Preview(ctx, id, req.Email, req.Name)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, out)
}
