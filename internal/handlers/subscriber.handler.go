package handlers

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/fasthttp/router"

	"github.com/nimasrn/campaign-gateway/internal/model"
	xhttp "github.com/nimasrn/campaign-gateway/pkg/http"
)

type SubscriberService interface {
	Create(ctx context.Context, p model.SubscriberCreateRequest) (*model.Subscriber, error)
	Get(ctx context.Context, id int64) (*model.Subscriber, error)
	List(ctx context.Context, f model.SubscriberFilter) ([]*model.Subscriber, int64, error)
	Unsubscribe(ctx context.Context, token string) error
	ImportCSV(ctx context.Context, r io.Reader) (*model.ImportResult, error)
}

type SubscriberHandler struct {
	svc SubscriberService
}

func RegisterSubscriberRoutes(e *router.Group, h *SubscriberHandler) {
	e.POST("/subscribers", h.CreateSubscriber)
	e.GET("/subscribers", h.ListSubscribers)
	e.GET("/subscribers/{id}", h.GetSubscriber)
	e.POST("/subscribers/import", h.ImportSubscribers)
	e.GET("/unsubscribe", h.Unsubscribe)
	e.POST("/unsubscribe", h.Unsubscribe)
}

func NewSubscriberHandler(subscriberService SubscriberService) *SubscriberHandler {
	return &SubscriberHandler{
		svc: subscriberService,
	}
}

type createSubscriberRequest struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	CustomMessage string `json:"custom_message"`
}

type subscriberListResponse struct {
	Items []*model.Subscriber `json:"items"`
	Total int64               `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *SubscriberHandler) CreateSubscriber(ctx *xhttp.RequestCtx) {
	var req createSubscriberRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	sub, err := h.svc.Create(ctx, model.SubscriberCreateRequest{
		Email:         req.Email,
		Name:          req.Name,
		CustomMessage: req.CustomMessage,
	})
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, sub)
}

func (h *SubscriberHandler) GetSubscriber(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid subscriber id")
		return
	}

	sub, err := h.svc.Get(ctx, id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, sub)
}

func (h *SubscriberHandler) ListSubscribers(ctx *xhttp.RequestCtx) {
	var f model.SubscriberFilter

	if v := query(ctx, "active"); v != "" {
		active := v == "1" || strings.EqualFold(v, "true")
		f.Active = &active
	}
	if v := query(ctx, "email"); v != "" {
		f.Email = &v
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
	writeJSON(ctx, 200, subscriberListResponse{Items: items, Total: total})
}

// ImportSubscribers reads the request body as CSV. Multipart uploads use the
// "file" field; plain bodies are taken as-is.
func (h *SubscriberHandler) ImportSubscribers(ctx *xhttp.RequestCtx) {
	var src io.Reader

	if fh, err := ctx.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			writeError(ctx, 400, "cannot open uploaded file: "+err.Error())
			return
		}
		defer f.Close()
		src = f
	} else {
		body := ctx.PostBody()
		if len(body) == 0 {
			writeError(ctx, 400, "empty import body")
			return
		}
		src = bytes.NewReader(body)
	}

	result, err := h.svc.ImportCSV(ctx, src)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, result)
}

func (h *SubscriberHandler) Unsubscribe(ctx *xhttp.RequestCtx) {
	token := query(ctx, "token")
	if token == "" {
		writeError(ctx, 400, "token is required")
		return
	}

	if err := h.svc.Unsubscribe(ctx, token); err != nil {
		respondServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "unsubscribed"})
}
