// Package dummy is a local mock target for trying stageq without a real service.
package dummy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type ServerConfig struct {
	Port int
	// NoDelay turns off the simulated latency.
	NoDelay bool
}

type askRequest struct {
	Message string `json:"message"`
}

type askResponse struct {
	Summary string `json:"summary"`
}

// NewRouter builds the mock endpoints.
func NewRouter(cfg ServerConfig) *mux.Router {
	sleep := func(min, spread int) {
		if cfg.NoDelay {
			return
		}
		time.Sleep(time.Duration(rand.Intn(spread)+min) * time.Millisecond)
	}

	r := mux.NewRouter()

	// 1. Agent-style endpoint (200-800ms): answers a JSON message with a summary
	r.HandleFunc("/ask", func(w http.ResponseWriter, req *http.Request) {
		var in askRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			http.Error(w, "body must be JSON", http.StatusBadRequest)
			return
		}
		sleep(200, 600)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(askResponse{
			Summary: fmt.Sprintf("Summary for %q: all observations within normal range.", in.Message),
		})
	}).Methods("POST")

	// 2. Slow Endpoint (1s-2s) - Good for testing timeouts and graceful stop
	r.HandleFunc("/slow", func(w http.ResponseWriter, req *http.Request) {
		sleep(1000, 1000)
		w.Write([]byte("Slow response"))
	})

	// 3. Spike Endpoint (Usually fast, randomly very slow)
	r.HandleFunc("/spike", func(w http.ResponseWriter, req *http.Request) {
		if rand.Float32() < 0.05 {
			sleep(2000, 1)
		} else {
			sleep(20, 1)
		}
		w.Write([]byte("Spikey response"))
	})

	// 4. Error Endpoint (Random failures)
	r.HandleFunc("/error", func(w http.ResponseWriter, req *http.Request) {
		rnd := rand.Float32()
		if rnd < 0.2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 Internal Server Error"))
		} else if rnd < 0.4 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("429 Too Many Requests"))
		} else {
			w.Write([]byte("OK"))
		}
	})

	// 5. Empty Endpoint: 200 without a body, fails "response is not empty"
	r.HandleFunc("/empty", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

// Start listens on cfg.Port and serves in the background. The caller owns
// shutdown of the returned server.
func Start(cfg ServerConfig, logger *zap.Logger) (*http.Server, error) {
	addr := fmt.Sprintf(":%d", cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	fmt.Printf("👻 Dummy Server running on http://localhost%s\n", addr)
	fmt.Println("   Endpoints: POST /ask, /slow, /spike, /error, /empty")

	server := &http.Server{
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("dummy server failed", zap.Error(err))
		}
	}()
	return server, nil
}
