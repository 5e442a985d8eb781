package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/eipdev/eipdev-go/pkg/app"
	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/connpoint"
	"github.com/eipdev/eipdev-go/pkg/stack"
)

// StatusResponse is the JSON response of GET /status.
type StatusResponse struct {
	ProductName                    string `json:"product_name"`
	Scans                          uint64 `json:"scans"`
	Running                        bool   `json:"running"`
	Connections                    int    `json:"connections"`
	EncapsulationInactivityTimeout uint16 `json:"encapsulation_inactivity_timeout"`
	Failsafe                       string `json:"failsafe"`
	Policy                         string `json:"failsafe_policy"`
}

// AssemblyResponse is the JSON form of an assembly instance.
type AssemblyResponse struct {
	ID   uint16 `json:"id"`
	Size int    `json:"size"`
	Data string `json:"data"`
}

// ConnectionResponse is the JSON form of an open connection.
type ConnectionResponse struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	OutputID uint16 `json:"output_id"`
	InputID  uint16 `json:"input_id"`
	ConfigID uint16 `json:"config_id"`
	RPI      string `json:"rpi"`
	Trigger  string `json:"trigger"`
	Run      bool   `json:"run"`
	Consumed uint64 `json:"consumed"`
	Produced uint64 `json:"produced"`
}

// OpenRequest is the JSON body of POST /connections.
type OpenRequest struct {
	Role              string `json:"role"`
	OutputID          uint16 `json:"output_id"`
	InputID           uint16 `json:"input_id"`
	ConfigID          uint16 `json:"config_id"`
	RPI               string `json:"rpi,omitempty"`
	TimeoutMultiplier int    `json:"timeout_multiplier,omitempty"`
	ChangeOfState     bool   `json:"change_of_state,omitempty"`
	ConfigData        string `json:"config_data,omitempty"`
}

// DataRequest carries hex data for writes.
type DataRequest struct {
	Data string `json:"data"`
	Run  *bool  `json:"run,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error     string `json:"error"`
	CIPStatus string `json:"cip_status,omitempty"`
}

type handlers struct {
	host   *stack.Host
	device *app.Device
}

// NewRouter creates the diagnostics router.
func NewRouter(host *stack.Host, device *app.Device) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	h := &handlers{host: host, device: device}

	r.Get("/status", h.handleStatus)

	r.Route("/assemblies", func(r chi.Router) {
		r.Get("/", h.handleListAssemblies)
		r.Get("/{id}", h.handleGetAssembly)
		r.Put("/{id}", h.handleSetAssembly)
	})

	r.Route("/connections", func(r chi.Router) {
		r.Get("/", h.handleListConnections)
		r.Post("/", h.handleOpenConnection)
		r.Delete("/", h.handleCloseAll)
		r.Delete("/{id}", h.handleCloseConnection)
		r.Post("/{id}/output", h.handleDeliverOutput)
	})

	r.Route("/attributes/{class}/{instance}/{attr}", func(r chi.Router) {
		r.Get("/", h.handleGetAttribute)
		r.Put("/", h.handleSetAttribute)
		r.Post("/clear", h.handleGetAndClear)
	})

	r.Post("/reset/{type}", h.handleReset)
	return r
}

// do runs fn on the stack loop.
func (h *handlers) do(w http.ResponseWriter, r *http.Request, fn func()) bool {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.host.Do(ctx, fn); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return false
	}
	return true
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	ok := h.do(w, r, func() {
		resp.ProductName = h.host.Identity().ProductName
		resp.Scans = h.host.Scans()
		resp.Running = h.device.Running()
		resp.Connections = len(h.host.Connections())
		resp.EncapsulationInactivityTimeout = h.host.TCPIP().EncapsulationInactivityTimeout()
		resp.Failsafe = h.device.Guard().State(app.OutputID).String()
		resp.Policy = h.device.Guard().Policy().String()
	})
	if ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *handlers) handleListAssemblies(w http.ResponseWriter, r *http.Request) {
	var resp []AssemblyResponse
	ok := h.do(w, r, func() {
		for _, id := range h.host.AssemblyIDs() {
			data, _ := h.host.Assembly(id)
			resp = append(resp, AssemblyResponse{ID: id, Size: len(data), Data: hex.EncodeToString(data)})
		}
	})
	if ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *handlers) handleGetAssembly(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint16(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var (
		data  []byte
		found bool
	)
	if !h.do(w, r, func() { data, found = h.host.Assembly(id) }) {
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("assembly %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, AssemblyResponse{ID: id, Size: len(data), Data: hex.EncodeToString(data)})
}

func (h *handlers) handleSetAssembly(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint16(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, _, err := readData(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if h.do(w, r, func() { err = h.host.SetAttributeSingle(cip.ClassAssembly, id, stack.AttrAssemblyData, data) }) {
		writeResult(w, err, nil)
	}
}

func (h *handlers) handleListConnections(w http.ResponseWriter, r *http.Request) {
	var conns []stack.ConnectionInfo
	if !h.do(w, r, func() { conns = h.host.Connections() }) {
		return
	}
	resp := make([]ConnectionResponse, 0, len(conns))
	for _, c := range conns {
		resp = append(resp, connectionResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleOpenConnection(w http.ResponseWriter, r *http.Request) {
	var body OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := body.toStack()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		id   uuid.UUID
		info stack.ConnectionInfo
	)
	ok := h.do(w, r, func() {
		if id, err = h.host.OpenConnection(req); err == nil {
			info, _ = h.host.Connection(id)
		}
	})
	if !ok {
		return
	}
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusCreated, connectionResponse(info))
}

func (h *handlers) handleCloseAll(w http.ResponseWriter, r *http.Request) {
	var n int
	if h.do(w, r, func() { n = h.host.CloseAllConnections() }) {
		writeJSON(w, http.StatusOK, map[string]int{"closed": n})
	}
}

func (h *handlers) handleCloseConnection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if h.do(w, r, func() { err = h.host.CloseConnection(id) }) {
		writeResult(w, err, nil)
	}
}

func (h *handlers) handleDeliverOutput(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, run, err := readData(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if h.do(w, r, func() { err = h.host.DeliverOutput(id, data, run) }) {
		writeResult(w, err, nil)
	}
}

func (h *handlers) handleGetAttribute(w http.ResponseWriter, r *http.Request) {
	h.getAttribute(w, r, h.host.GetAttributeSingle)
}

func (h *handlers) handleGetAndClear(w http.ResponseWriter, r *http.Request) {
	h.getAttribute(w, r, h.host.GetAndClear)
}

func (h *handlers) getAttribute(w http.ResponseWriter, r *http.Request,
	service func(cip.ClassCode, uint16, uint16) ([]byte, error)) {
	class, inst, attr, err := attributePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var data []byte
	if h.do(w, r, func() { data, err = service(class, inst, attr) }) {
		writeResult(w, err, map[string]string{"data": hex.EncodeToString(data)})
	}
}

func (h *handlers) handleSetAttribute(w http.ResponseWriter, r *http.Request) {
	class, inst, attr, err := attributePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, _, err := readData(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if h.do(w, r, func() { err = h.host.SetAttributeSingle(class, inst, attr, data) }) {
		writeResult(w, err, nil)
	}
}

func (h *handlers) handleReset(w http.ResponseWriter, r *http.Request) {
	t, err := strconv.ParseUint(chi.URLParam(r, "type"), 10, 8)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if h.do(w, r, func() { err = h.host.Reset(cip.ResetType(t)) }) {
		writeResult(w, err, nil)
	}
}

func (b OpenRequest) toStack() (stack.OpenRequest, error) {
	role, err := connpoint.ParseRole(b.Role)
	if err != nil {
		return stack.OpenRequest{}, err
	}
	req := stack.OpenRequest{
		Role:              role,
		OutputID:          b.OutputID,
		InputID:           b.InputID,
		ConfigID:          b.ConfigID,
		TimeoutMultiplier: b.TimeoutMultiplier,
	}
	if b.RPI != "" {
		if req.RPI, err = time.ParseDuration(b.RPI); err != nil {
			return stack.OpenRequest{}, err
		}
	}
	if b.ChangeOfState {
		req.Trigger = stack.TriggerChangeOfState
	}
	if b.ConfigData != "" {
		if req.ConfigData, err = hex.DecodeString(b.ConfigData); err != nil {
			return stack.OpenRequest{}, err
		}
	}
	return req, nil
}

func connectionResponse(c stack.ConnectionInfo) ConnectionResponse {
	return ConnectionResponse{
		ID:       c.ID.String(),
		Role:     c.Role.String(),
		OutputID: c.OutputID,
		InputID:  c.InputID,
		ConfigID: c.ConfigID,
		RPI:      c.RPI.String(),
		Trigger:  c.Trigger.String(),
		Run:      c.Run,
		Consumed: c.Consumed,
		Produced: c.Produced,
	}
}

func attributePath(r *http.Request) (cip.ClassCode, uint16, uint16, error) {
	class, err := parseUint16(chi.URLParam(r, "class"))
	if err != nil {
		return 0, 0, 0, err
	}
	inst, err := parseUint16(chi.URLParam(r, "instance"))
	if err != nil {
		return 0, 0, 0, err
	}
	attr, err := parseUint16(chi.URLParam(r, "attr"))
	if err != nil {
		return 0, 0, 0, err
	}
	return cip.ClassCode(class), inst, attr, nil
}

// parseUint16 accepts decimal or 0x-prefixed hex.
func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint16(v), nil
}

// readData decodes a DataRequest body. A missing run flag means run.
func readData(r *http.Request) ([]byte, bool, error) {
	var body DataRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, false, err
	}
	data, err := hex.DecodeString(body.Data)
	if err != nil {
		return nil, false, err
	}
	run := body.Run == nil || *body.Run
	return data, run, nil
}

// writeResult maps a service error to an HTTP status.
func writeResult(w http.ResponseWriter, err error, v any) {
	switch {
	case err == nil:
		if v == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, v)
	case errors.Is(err, stack.ErrConnectionNotFound):
		writeError(w, http.StatusNotFound, err)
	case notFound(cip.StatusOf(err)):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusUnprocessableEntity, err)
	}
}

func notFound(s cip.Status) bool {
	switch s {
	case cip.StatusPathDestinationUnknown, cip.StatusObjectDoesNotExist, cip.StatusAttributeNotSupported:
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var se *cip.StatusError
	if errors.As(err, &se) {
		resp.CIPStatus = se.Status.String()
	}
	writeJSON(w, status, resp)
}
