package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/mailAuth"
)

const maxBodyBytes = 64 << 10

// envelope is the body of every response.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

var errInvalidRequest = errors.New("invalid request body")

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type callbackRequest struct {
	Code string `json:"code"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req mailAuth.RegisterRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, res)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, res)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	s, ok := mailAuth.SessionFromContext(r.Context())
	if !ok {
		h.fail(w, r, mailAuth.ErrUnauthorized)
		return
	}
	if err := h.svc.Logout(r.Context(), s.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, nil)
}

func (h *handler) oauthURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.AuthorizationURL()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, map[string]string{"url": url})
}

func (h *handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.OAuthLoginWithCode(r.Context(), req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, res)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	status := h.svc.Health(r.Context())
	data := map[string]any{
		"redis":          status.RedisAvailable,
		"redisLatencyMs": status.RedisLatency.Milliseconds(),
	}
	if !status.RedisAvailable {
		h.write(w, http.StatusServiceUnavailable, envelope{
			Code:    http.StatusServiceUnavailable,
			Message: h.message(r, "internalError"),
			Data:    data,
		})
		return
	}
	h.ok(w, r, data)
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errInvalidRequest
	}
	return nil
}

func (h *handler) deny(w http.ResponseWriter, r *http.Request, err error) {
	h.fail(w, r, err)
}

func (h *handler) ok(w http.ResponseWriter, r *http.Request, data any) {
	h.write(w, http.StatusOK, envelope{
		Code:    http.StatusOK,
		Message: h.message(r, "success"),
		Data:    data,
	})
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errInvalidRequest) {
		h.write(w, http.StatusBadRequest, envelope{
			Code:    http.StatusBadRequest,
			Message: h.message(r, "invalidRequest"),
		})
		return
	}

	be := mailAuth.AsError(err)
	if be.Category == mailAuth.CategoryInternal {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"code", be.Code,
			"error", err,
		)
	}
	h.write(w, be.Status, envelope{
		Code:    be.Status,
		Message: h.message(r, be.Key),
	})
}

func (h *handler) message(r *http.Request, key string) string {
	return h.tr.Message(h.tr.Match(r.Header.Get("Accept-Language")), key)
}

func (h *handler) write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("response encode failed", "error", err)
	}
}
