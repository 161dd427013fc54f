package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/logger"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/report"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/service"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
)

type Options struct {
	AllowedOrigins []string
	// StaticDir, when set, is served at / with index.html as the fallback.
	StaticDir      string
	RequestTimeout time.Duration
}

type API struct {
	service        *service.Service
	metrics        *metrics
	allowedOrigins []string
	staticDir      string
	requestTimeout time.Duration
}

func New(svc *service.Service, opts Options) *API {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &API{
		service:        svc,
		metrics:        newMetrics(),
		allowedOrigins: origins,
		staticDir:      strings.TrimSpace(opts.StaticDir),
		requestTimeout: opts.RequestTimeout,
	}
}

func (a *API) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(a.metrics.instrument)

	router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", a.metrics.handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/inventory", a.handleListItems).Methods(http.MethodGet)
	api.HandleFunc("/inventory", a.handleCreateItem).Methods(http.MethodPost)
	api.HandleFunc("/inventory/initialize", a.handleInitializeInventory).Methods(http.MethodPost)
	api.HandleFunc("/inventory/item/{id}", a.handleGetItem).Methods(http.MethodGet)
	api.HandleFunc("/inventory/{category}", a.handleListItems).Methods(http.MethodGet)
	api.HandleFunc("/inventory/{id}", a.handleUpdateItem).Methods(http.MethodPut)
	api.HandleFunc("/inventory/{id}", a.handleDeleteItem).Methods(http.MethodDelete)

	api.HandleFunc("/bills", a.handleListBills).Methods(http.MethodGet)
	api.HandleFunc("/bills", a.handleCreateBill).Methods(http.MethodPost)
	api.HandleFunc("/bills/{id}", a.handleGetBill).Methods(http.MethodGet)

	api.HandleFunc("/reports/download/{type}", a.handleDownloadReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/{period:daily|monthly|yearly}", a.handleReport).Methods(http.MethodGet)

	api.PathPrefix("/").HandlerFunc(handleAPINotFound)

	if a.staticDir != "" {
		router.PathPrefix("/").Handler(spaHandler{dir: a.staticDir})
	}
	// Router middleware skips these, so they are instrumented directly.
	router.NotFoundHandler = a.metrics.instrument(http.HandlerFunc(handleNotFound))
	router.MethodNotAllowedHandler = a.metrics.instrument(http.HandlerFunc(writeMethodNotAllowed))

	return withRequestLog(withRecovery(a.withCORS(a.withMiddleware(router))))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := a.service.Health(r.Context())
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("health check failed")
		writeJSON(w, http.StatusInternalServerError, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.ListItems(r.Context(), mux.Vars(r)["category"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := a.service.GetItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req domain.InventoryCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := a.service.CreateItem(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleInitializeInventory(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.InitializeInventory(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req domain.InventoryUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := a.service.UpdateItem(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteItem(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.DeleteResponse{Message: "Item deleted successfully"})
}

func (a *API) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := a.service.ListBills(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (a *API) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := a.service.GetBill(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (a *API) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req domain.BillCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	bill, err := a.service.CreateBill(r.Context(), req)
	if err != nil {
		var shortage *store.InsufficientStockError
		if errors.As(err, &shortage) {
			for _, s := range shortage.Shortfalls {
				a.metrics.stockShortfall.WithLabelValues(s.Reason).Inc()
			}
		}
		writeError(w, r, err)
		return
	}
	a.metrics.observeBill(bill)
	writeJSON(w, http.StatusOK, bill)
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := a.service.Report(r.Context(), mux.Vars(r)["period"], reportQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	filename, body, err := a.service.ExportReport(r.Context(), mux.Vars(r)["type"], reportQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func reportQuery(r *http.Request) report.Query {
	q := r.URL.Query()
	return report.Query{
		Date:  q.Get("date"),
		Month: q.Get("month"),
		Year:  q.Get("year"),
	}
}

func handleAPINotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "API endpoint not found"})
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
}

// spaHandler serves files from dir and answers every other path with
// index.html so client-side routes survive a reload.
type spaHandler struct {
	dir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeMethodNotAllowed(w, r)
		return
	}

	name := filepath.Join(h.dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		http.ServeFile(w, r, name)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
}

func decodeJSON(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return domain.Invalid("", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

// statusFor keeps the existing client contract: a missing record is 404 and
// every other failure is 500.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the text a client may see, or "" when the error is
// internal and must not leak.
func publicMessage(err error) string {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		return "Item not found"
	case errors.Is(err, service.ErrBillNotFound):
		return "Bill not found"
	case errors.As(err, &tooLarge):
		return "request body too large"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrUnavailable),
		errors.Is(err, store.ErrDuplicate):
		return err.Error()
	default:
		return ""
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := publicMessage(err)
	if msg == "" {
		logger.Error(r.Context()).Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
