package httpapi

import (
	"net/http"
	"time"

	"github.com/astrohackerx/spl402-OpenRouter/tier"
)

type healthResponse struct {
	Status            string `json:"status"`
	GatewayConfigured bool   `json:"gatewayConfigured"`
	Timestamp         string `json:"timestamp"`
}

// handleHealth reports liveness and credential presence. It never calls
// the gateway.
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:            "ok",
		GatewayConfigured: h.svc.Configured(),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	})
}

type tierInfo struct {
	Tier     string   `json:"tier"`
	Model    string   `json:"model"`
	Fallback []string `json:"fallback,omitempty"`
	Price    string   `json:"price"`
}

type tiersResponse struct {
	Tiers  []tierInfo `json:"tiers"`
	Routes []Route    `json:"routes"`
}

// handleTiers publishes the tier table and route list for the payment gate
// and frontends.
func (h *handler) handleTiers(w http.ResponseWriter, r *http.Request) {
	policy := h.svc.Policy()
	resp := tiersResponse{Routes: Routes}
	for _, t := range tier.All {
		name := string(t)
		resp.Tiers = append(resp.Tiers, tierInfo{
			Tier:     name,
			Model:    policy.ModelFor(name),
			Fallback: policy.FallbackChain(name),
			Price:    policy.Price(name),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
