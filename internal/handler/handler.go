package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/angeloszaimis/item-enricher/internal/correlation"
	"github.com/angeloszaimis/item-enricher/internal/record"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// ItemStore reads and writes items, normally through the cache layer.
type ItemStore interface {
	Put(ctx context.Context, r record.Record) (record.Record, error)
	Get(ctx context.Context, id int64) (record.Record, error)
}

type ItemLister interface {
	List(ctx context.Context) ([]record.Record, error)
}

type Enricher interface {
	Enrich(ctx context.Context, id int64) (record.EnrichedRecord, error)
}

type ItemHandler struct {
	logger   *slog.Logger
	items    ItemStore
	lister   ItemLister
	enricher Enricher
}

type createItemRequest struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

func (r createItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
	)
}

func NewItemHandler(logger *slog.Logger, items ItemStore, lister ItemLister, enricher Enricher) *ItemHandler {
	return &ItemHandler{
		logger:   logger,
		items:    items,
		lister:   lister,
		enricher: enricher,
	}
}

func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", record.ErrInvalidRecord, err))
		return
	}

	item := record.Record{Name: req.Name}
	if req.Value != nil {
		item.Value = *req.Value
	}

	saved, err := h.items.Put(r.Context(), item)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("Item created", correlation.Attr(r.Context()), slog.Int64("id", saved.ID))
	writeJSON(w, http.StatusCreated, saved)
}

func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	item, err := h.items.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.lister.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// Enrich answers 200 whenever the item exists; degradation shows in
// externalInfo.status only.
func (h *ItemHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	enriched, err := h.enricher.Enrich(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, enriched)
}

func (h *ItemHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	attrs := []any{
		correlation.Attr(r.Context()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", attrs...)
	} else {
		h.logger.Info("Request rejected", attrs...)
	}

	writeError(w, r, status, err)
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, raw)
	}
	return id, nil
}
