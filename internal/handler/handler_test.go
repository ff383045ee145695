package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/item-enricher/internal/correlation"
	"github.com/angeloszaimis/item-enricher/internal/handler"
	"github.com/angeloszaimis/item-enricher/internal/record"
)

type fakeItems struct {
	mutex   sync.Mutex
	records map[int64]record.Record
	nextID  int64
	err     error
}

func (f *fakeItems) Put(_ context.Context, r record.Record) (record.Record, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.err != nil {
		return record.Record{}, f.err
	}
	f.nextID++
	r.ID = f.nextID
	f.records[r.ID] = r
	return r, nil
}

func (f *fakeItems) Get(_ context.Context, id int64) (record.Record, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.err != nil {
		return record.Record{}, f.err
	}
	r, ok := f.records[id]
	if !ok {
		return record.Record{}, fmt.Errorf("%w: id %d", record.ErrNotFound, id)
	}
	return r, nil
}

func (f *fakeItems) List(context.Context) ([]record.Record, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]record.Record, 0, len(f.records))
	for id := int64(1); id <= f.nextID; id++ {
		out = append(out, f.records[id])
	}
	return out, nil
}

type fakeEnricher struct {
	items *fakeItems
	info  record.EnrichmentInfo
	err   error
}

func (f *fakeEnricher) Enrich(ctx context.Context, id int64) (record.EnrichedRecord, error) {
	if f.err != nil {
		return record.EnrichedRecord{}, f.err
	}
	item, err := f.items.Get(ctx, id)
	if err != nil {
		return record.EnrichedRecord{}, err
	}
	info := f.info
	info.ID = id
	return record.EnrichedRecord{Item: item, ExternalInfo: info}, nil
}

type errorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Status        int    `json:"status"`
	Type          string `json:"type"`
	Path          string `json:"path"`
	CorrelationID string `json:"correlationId"`
}

var _ = Describe("ItemHandler", func() {
	var (
		items    *fakeItems
		enricher *fakeEnricher
		server   http.Handler
		logger   *slog.Logger
	)

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		req.Header.Set(correlation.Header, "test-cid")
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		return rec
	}

	decodeError := func(rec *httptest.ResponseRecorder) errorBody {
		var body errorBody
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		items = &fakeItems{records: make(map[int64]record.Record)}
		enricher = &fakeEnricher{
			items: items,
			info:  record.EnrichmentInfo{Description: "live", Status: record.StatusSuccess},
		}

		h := handler.NewItemHandler(logger, items, items, enricher)
		mux := http.NewServeMux()
		mux.HandleFunc("POST /items", h.CreateItem)
		mux.HandleFunc("GET /items", h.ListItems)
		mux.HandleFunc("GET /items/{id}", h.GetItem)
		mux.HandleFunc("GET /enrich/{id}", h.Enrich)
		server = handler.Chain(mux, handler.Correlation)
	})

	Describe("POST /items", func() {
		It("should create an item and return 201", func() {
			rec := do(http.MethodPost, "/items", `{"name":"baseline-item","value":100}`)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(rec.Body.String()).To(MatchJSON(`{"id":1,"name":"baseline-item","value":100}`))
		})

		It("should default a missing value to zero", func() {
			rec := do(http.MethodPost, "/items", `{"name":"enrich-item"}`)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Body.String()).To(MatchJSON(`{"id":1,"name":"enrich-item","value":0}`))
		})

		DescribeTable("should reject invalid bodies with 400",
			func(body string) {
				rec := do(http.MethodPost, "/items", body)

				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				errBody := decodeError(rec)
				Expect(errBody.Status).To(Equal(http.StatusBadRequest))
				Expect(errBody.Error).To(Equal("Bad Request"))
				Expect(errBody.Path).To(Equal("/items"))
			},
			Entry("missing name", `{"value":1}`),
			Entry("empty name", `{"name":"","value":1}`),
			Entry("name too long", fmt.Sprintf(`{"name":%q}`, strings.Repeat("x", 256))),
			Entry("not json", `name=x`),
			Entry("wrong types", `{"name":"x","value":"high"}`),
		)

		It("should map store outages to 503", func() {
			items.err = fmt.Errorf("%w: connection reset", record.ErrStoreUnavailable)

			rec := do(http.MethodPost, "/items", `{"name":"latency-item","value":1.0}`)

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			errBody := decodeError(rec)
			Expect(errBody.Message).To(ContainSubstring("connection reset"))
			Expect(errBody.CorrelationID).To(Equal("test-cid"))
		})

		It("should map store timeouts to 503", func() {
			items.err = record.ErrStoreTimeout

			rec := do(http.MethodPost, "/items", `{"name":"latency-item","value":1.0}`)
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("should map unexpected errors to a 500 diagnostic", func() {
			items.err = errors.New("disk on fire")

			rec := do(http.MethodPost, "/items", `{"name":"x"}`)

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeError(rec).Type).To(Equal(handler.TypeFatalDiagnostic))
		})
	})

	Describe("GET /items/{id}", func() {
		It("should return what was created", func() {
			created := do(http.MethodPost, "/items", `{"name":"round-trip","value":2.5}`)
			Expect(created.Code).To(Equal(http.StatusCreated))

			rec := do(http.MethodGet, "/items/1", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(created.Body.String()))
		})

		It("should return 404 for unknown items", func() {
			rec := do(http.MethodGet, "/items/42", "")

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			errBody := decodeError(rec)
			Expect(errBody.Error).To(Equal("Not Found"))
			Expect(errBody.Type).To(BeEmpty())
		})

		DescribeTable("should return 400 for invalid identifiers",
			func(id string) {
				rec := do(http.MethodGet, "/items/"+id, "")
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			},
			Entry("non numeric", "abc"),
			Entry("zero", "0"),
			Entry("negative", "-3"),
		)
	})

	Describe("GET /items", func() {
		It("should list every item", func() {
			do(http.MethodPost, "/items", `{"name":"a","value":1}`)
			do(http.MethodPost, "/items", `{"name":"b","value":2}`)

			rec := do(http.MethodGet, "/items", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`[{"id":1,"name":"a","value":1},{"id":2,"name":"b","value":2}]`))
		})

		It("should return an empty array when there are no items", func() {
			rec := do(http.MethodGet, "/items", "")
			Expect(rec.Body.String()).To(MatchJSON(`[]`))
		})
	})

	Describe("GET /enrich/{id}", func() {
		BeforeEach(func() {
			do(http.MethodPost, "/items", `{"name":"enrich-item"}`)
		})

		It("should return the item with live info", func() {
			rec := do(http.MethodGet, "/enrich/1", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{
				"item": {"id":1,"name":"enrich-item","value":0},
				"externalInfo": {"id":1,"description":"live","status":"success"}
			}`))
		})

		It("should still answer 200 with degraded info", func() {
			enricher.info = record.EnrichmentInfo{
				Description: "Service Unavailable (Fallback): timeout",
				Status:      record.StatusUnavailable,
			}

			rec := do(http.MethodGet, "/enrich/1", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body record.EnrichedRecord
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.ExternalInfo.Status).To(Equal(record.StatusUnavailable))
			Expect(body.ExternalInfo.Description).To(ContainSubstring("Fallback"))
		})

		It("should return 404 when the item does not exist", func() {
			rec := do(http.MethodGet, "/enrich/99", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("should surface store failures as 503", func() {
			enricher.err = record.ErrStoreTimeout

			rec := do(http.MethodGet, "/enrich/1", "")
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		})
	})
})
