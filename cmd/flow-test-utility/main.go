package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/eencloud/goeen/log"
)

// Drives a running signup service through the full wizard against the
// cleancloud simulator. Start the service first:
//
//	MODE=simulation go run ./cmd/signup-service
//
// then run this utility against it.
func main() {
	fmt.Println("=== Flow Test: Full Signup Wizard ===")

	customFormat := "{{eenTimeStamp .Now}}[{{.Level}}][{{.Function}}({{.Filename}}:{{.LineNo}})]: {{.Message}}"
	customContext := log.NewContext(os.Stderr, customFormat, log.LevelInfo)
	logger := customContext.GetLogger("flow-test", log.LevelInfo)

	baseURL := "http://localhost:33490"
	if url := os.Getenv("SIGNUP_SERVICE_URL"); url != "" {
		baseURL = url
	}

	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Println("\n1. Configuring cleancloud integration...")
	configureIntegration(logger, client, baseURL)

	fmt.Println("\n2. Running pickup/delivery signup...")
	runPickupFlow(logger, client, baseURL)

	fmt.Println("\n3. Running retail-store short circuit...")
	runRetailFlow(logger, client, baseURL)

	fmt.Println("\n4. Checking metrics...")
	checkMetrics(logger, client, baseURL)

	fmt.Println("\n=== Flow Test Complete ===")
}

func configureIntegration(logger *log.Logger, client *http.Client, baseURL string) {
	payload := map[string]interface{}{
		"vendor": "cleancloud",
		"config": map[string]interface{}{
			"api_key":  "flow-test-key",
			"store_id": "store-1",
		},
	}
	env := postJSON(logger, client, baseURL+"/admin/integration", payload)
	if env == nil || !env.Success {
		logger.Fatalf("Failed to configure integration: %+v", env)
	}
	fmt.Println("  Integration configured")
}

func runPickupFlow(logger *log.Logger, client *http.Client, baseURL string) {
	token := fetchToken(logger, client, baseURL)

	env := postJSON(logger, client, baseURL+"/signup/step/1", map[string]interface{}{
		"token":      token,
		"first_name": "Flow",
		"last_name":  "Tester",
		"phone":      "5550001111",
		"email":      fmt.Sprintf("flow-%d@example.com", time.Now().UnixNano()),
	})
	if env == nil || !env.Success {
		logger.Fatalf("Step 1 failed: %+v", env)
	}
	submissionID := stringField(env.Data, "submission_id")
	step2Token := nextToken(env.Data)
	fmt.Printf("  Step 1 done, submission %s\n", submissionID)

	env = postJSON(logger, client, baseURL+"/signup/step/2", map[string]interface{}{
		"token":              step2Token,
		"submission_id":      submissionID,
		"service_preference": "pickup_delivery",
	})
	if env == nil || !env.Success {
		logger.Fatalf("Step 2 failed: %+v", env)
	}
	step3Token := nextToken(env.Data)
	fmt.Println("  Step 2 done")

	env = postJSON(logger, client, baseURL+"/signup/step/3", map[string]interface{}{
		"token":         step3Token,
		"submission_id": submissionID,
		"street":        "1 Main St",
		"city":          "Austin",
		"state":         "TX",
		"zip":           "78701",
	})
	if env == nil || !env.Success {
		logger.Fatalf("Step 3 failed: %+v", env)
	}
	step4Token := nextToken(env.Data)

	date, slot := firstPickupSlot(env.Data)
	if date == "" {
		logger.Fatalf("No pickup dates offered: %+v", env.Data)
	}
	fmt.Printf("  Step 3 done, first slot %s %s\n", date, slot)

	env = postJSON(logger, client, baseURL+"/signup/step/4", map[string]interface{}{
		"token":         step4Token,
		"submission_id": submissionID,
		"pickup_date":   date,
		"time_slot":     slot,
		"card_number":   "4242424242424242",
		"exp_month":     "12",
		"exp_year":      "2030",
		"cvc":           "123",
	})
	if env == nil || !env.Success {
		logger.Fatalf("Step 4 failed: %+v", env)
	}
	fmt.Println("  Step 4 done, signup completed")
}

func runRetailFlow(logger *log.Logger, client *http.Client, baseURL string) {
	token := fetchToken(logger, client, baseURL)

	env := postJSON(logger, client, baseURL+"/signup/step/1", map[string]interface{}{
		"token":      token,
		"first_name": "Retail",
		"last_name":  "Tester",
		"phone":      "5550002222",
		"email":      fmt.Sprintf("retail-%d@example.com", time.Now().UnixNano()),
	})
	if env == nil || !env.Success {
		logger.Fatalf("Step 1 failed: %+v", env)
	}
	submissionID := stringField(env.Data, "submission_id")
	step2Token := nextToken(env.Data)

	env = postJSON(logger, client, baseURL+"/signup/step/2", map[string]interface{}{
		"token":              step2Token,
		"submission_id":      submissionID,
		"service_preference": "retail_store",
	})
	if env == nil || !env.Success {
		logger.Fatalf("Step 2 failed: %+v", env)
	}
	data, _ := env.Data.(map[string]interface{})
	if completed, _ := data["completed"].(bool); !completed {
		logger.Fatalf("Retail signup should complete at step 2: %+v", env.Data)
	}
	fmt.Println("  Retail signup completed at step 2")
}

func checkMetrics(logger *log.Logger, client *http.Client, baseURL string) {
	resp, err := client.Get(baseURL + "/metrics")
	if err != nil {
		logger.Fatalf("Failed to get metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		logger.Fatalf("Metrics returned %d: %s", resp.StatusCode, string(body))
	}
	fmt.Printf("  Metrics OK (%d bytes)\n", len(body))
}

type responseEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

func fetchToken(logger *log.Logger, client *http.Client, baseURL string) string {
	resp, err := client.Get(baseURL + "/signup/token")
	if err != nil {
		logger.Fatalf("Failed to get bootstrap token: %v", err)
	}
	defer resp.Body.Close()

	var env responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		logger.Fatalf("Bad token response: %v", err)
	}
	return stringField(env.Data, "token")
}

func postJSON(logger *log.Logger, client *http.Client, url string, payload interface{}) *responseEnvelope {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Fatalf("Failed to marshal payload: %v", err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	var env responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		logger.Fatalf("Bad response from %s: %v", url, err)
	}
	if !env.Success {
		logger.Warningf("POST %s: %s", url, env.Message)
	}
	return &env
}

func stringField(data interface{}, key string) string {
	m, _ := data.(map[string]interface{})
	s, _ := m[key].(string)
	return s
}

func nextToken(data interface{}) string {
	m, _ := data.(map[string]interface{})
	next, _ := m["next_step"].(map[string]interface{})
	s, _ := next["token"].(string)
	return s
}

func firstPickupSlot(data interface{}) (string, string) {
	m, _ := data.(map[string]interface{})
	dates, _ := m["pickup_dates"].([]interface{})
	if len(dates) == 0 {
		return "", ""
	}
	first, _ := dates[0].(map[string]interface{})
	date, _ := first["date"].(string)
	slots, _ := first["time_slots"].([]interface{})
	slot := ""
	if len(slots) > 0 {
		slot, _ = slots[0].(string)
	}
	return date, slot
}
