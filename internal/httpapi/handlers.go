package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/dice-poker-backend/internal/engine"
	"github.com/DoyleJ11/dice-poker-backend/internal/hub"
)

const (
	codeLength   = 6
	codeAttempts = 8
)

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// NewRoomCode hands out a code no live room is using. The code is not
// reserved; create_room still reports a collision if someone races for it.
func NewRoomCode(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < codeAttempts; i++ {
			c, err := GenerateCode()
			if err != nil {
				log.Error("generate room code", zap.Error(err))
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			_, err = h.Get(r.Context(), c)
			switch {
			case errors.Is(err, engine.ErrNotFound):
				writeJSON(w, http.StatusCreated, struct {
					Code string `json:"code"`
				}{Code: c})
				return
			case err != nil:
				http.Error(w, "room registry unavailable", http.StatusServiceUnavailable)
				return
			}
			log.Debug("collision on code, regenerating", zap.String("code", c))
		}
		http.Error(w, "no free room code", http.StatusServiceUnavailable)
	}
}

// ListRooms reports the live room count and codes.
func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codes, err := h.List(r.Context())
		if err != nil {
			http.Error(w, "room registry unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Count int      `json:"count"`
			Rooms []string `json:"rooms"`
		}{Count: len(codes), Rooms: codes})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
