package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const baseURL = "http://localhost:8080"

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health Check
	checkEndpoint("GET", "/health", nil, 200)

	// 2. Create Asset
	assetID := createAsset()
	fmt.Printf("Created Asset ID: %s\n", assetID)

	// 3. List Assets
	checkEndpoint("GET", "/assets", nil, 200)

	// 4. Refresh Prices
	checkEndpoint("POST", "/prices/refresh", nil, 200)
	checkEndpoint("GET", "/prices/cache", nil, 200)

	// 5. Portfolio & Allocation
	checkEndpoint("GET", "/portfolio", nil, 200)
	checkEndpoint("GET", "/allocation/type", nil, 200)
	checkEndpoint("GET", "/allocation/currency", nil, 200)
	checkEndpoint("GET", "/allocation/account", nil, 200)

	// 6. Record History (twice: second call is an idempotent no-op)
	checkEndpoint("POST", "/history/record", nil, 200)
	checkEndpoint("POST", "/history/record", nil, 200)
	checkEndpoint("GET", "/history?days=7", nil, 200)

	// 7. Archive & Verify
	checkEndpoint("POST", "/assets/"+assetID+"/archive", nil, 200)
	checkEndpoint("POST", "/assets/"+assetID+"/unarchive", nil, 200)

	fmt.Println("ALL TESTS PASSED")
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))
}

func createAsset() string {
	fmt.Println("Creating asset...")
	reqBody := map[string]interface{}{
		"ticker":   "7203",
		"name":     fmt.Sprintf("Toyota e2e %d", time.Now().UnixNano()),
		"type":     "JP_STOCK",
		"account":  "NISA",
		"currency": "JPY",
		"quantity": "100",
		"avgCost":  "2500",
	}
	jsonBody, _ := json.Marshal(reqBody)
	resp, err := http.Post(baseURL+"/assets", "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Fatalf("Create asset failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 201 {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("Create asset failed with status %d: %s", resp.StatusCode, string(body))
	}

	var res map[string]string
	json.NewDecoder(resp.Body).Decode(&res)
	return res["id"]
}
