//go:build ignore

// chaos drives the item service through dependency failure scenarios and
// checks that enrichment degrades instead of failing. It expects the service
// on -service and fakedependency.go on -dependency.
//
// Usage:
//
//	go run chaos.go -service http://localhost:8080 -dependency http://localhost:8081
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type item struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type enriched struct {
	Item         item `json:"item"`
	ExternalInfo struct {
		ID          int64  `json:"id"`
		Description string `json:"description"`
		Status      string `json:"status"`
	} `json:"externalInfo"`
}

var failures int

func main() {
	var (
		serviceURL    = flag.String("service", "http://localhost:8080", "item service URL")
		basePath      = flag.String("base-path", "/api", "item service base path")
		dependencyURL = flag.String("dependency", "http://localhost:8081", "fake dependency URL")
		requests      = flag.Int("requests", 20, "requests per phase")
		coolDown      = flag.Duration("cool-down", 10*time.Second, "breaker cool-down configured on the service")
	)
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	api := *serviceURL + *basePath

	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║         ENRICHMENT RESILIENCE CHECK                           ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)
	fmt.Println()

	setFaults(client, *dependencyURL, "0s", 0, 0)

	// PHASE 1: Baseline
	fmt.Println(colorBlue + "━━━ PHASE 1: Baseline ━━━" + colorReset)
	created, err := createItem(client, api, `{"name":"baseline-item","value":100}`)
	if err != nil {
		fmt.Println(colorRed + "  ✗ Could not create item: " + err.Error() + colorReset)
		os.Exit(1)
	}
	check(created.ID > 0, "created item has an identifier")

	var fetched item
	status, err := getJSON(client, fmt.Sprintf("%s/items/%d", api, created.ID), &fetched)
	check(err == nil && status == http.StatusOK && fetched == created, "item round-trips through GET")

	e, status, _ := enrich(client, api, created.ID)
	check(status == http.StatusOK && e.ExternalInfo.Status == "success", "live enrichment succeeds")
	fmt.Println()

	// PHASE 2: Slow dependency
	fmt.Println(colorBlue + "━━━ PHASE 2: Dependency latency 3s ━━━" + colorReset)
	setFaults(client, *dependencyURL, "3s", 0, 0)
	enrichItem, _ := createItem(client, api, `{"name":"enrich-item"}`)

	e, status, took := enrich(client, api, enrichItem.ID)
	check(status == http.StatusOK, "enrich answers 200")
	check(strings.Contains(e.ExternalInfo.Description, "Fallback"), "description carries the fallback marker")
	fmt.Printf("  took %v, status=%s\n", took, e.ExternalInfo.Status)
	fmt.Println()

	// PHASE 3: Breaker opens
	fmt.Println(colorBlue + "━━━ PHASE 3: Circuit breaker opens ━━━" + colorReset)
	var last time.Duration
	for i := 0; i < *requests; i++ {
		_, _, last = enrich(client, api, enrichItem.ID)
	}
	e, _, last = enrich(client, api, enrichItem.ID)
	check(strings.HasSuffix(e.ExternalInfo.Description, "circuit open"), "requests are short-circuited")
	check(last < 500*time.Millisecond, fmt.Sprintf("short-circuited request is fast (%v)", last))
	printBreakers(client, *serviceURL)
	fmt.Println()

	// PHASE 4: Recovery
	fmt.Println(colorBlue + "━━━ PHASE 4: Recovery after cool-down ━━━" + colorReset)
	setFaults(client, *dependencyURL, "0s", 0, 0)
	fmt.Printf("  waiting %v for the cool-down...\n", *coolDown)
	time.Sleep(*coolDown + 500*time.Millisecond)

	e, status, _ = enrich(client, api, enrichItem.ID)
	check(status == http.StatusOK && e.ExternalInfo.Status == "success", "trial call closes the breaker")
	fmt.Println()

	// PHASE 5: Malformed and failing responses
	fmt.Println(colorBlue + "━━━ PHASE 5: Malformed and 5xx responses ━━━" + colorReset)
	setFaults(client, *dependencyURL, "0s", 0, 1)
	e, status, _ = enrich(client, api, enrichItem.ID)
	check(status == http.StatusOK && e.ExternalInfo.Status == "error", "malformed body degrades with status error")

	setFaults(client, *dependencyURL, "0s", 1, 0)
	e, status, _ = enrich(client, api, enrichItem.ID)
	check(status == http.StatusOK && e.ExternalInfo.Status == "error", "5xx degrades with status error")
	setFaults(client, *dependencyURL, "0s", 0, 0)
	fmt.Println()

	// PHASE 6: Unknown items
	fmt.Println(colorBlue + "━━━ PHASE 6: Unknown item ━━━" + colorReset)
	_, status, _ = enrich(client, api, 987654321)
	check(status == http.StatusNotFound, "enriching an unknown item answers 404")
	fmt.Println()

	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║                    CHECK COMPLETE                              ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)

	if failures > 0 {
		fmt.Printf(colorRed+"%d check(s) failed\n"+colorReset, failures)
		os.Exit(1)
	}
	fmt.Println(colorGreen + "All checks passed" + colorReset)
}

func check(ok bool, what string) {
	if ok {
		fmt.Println(colorGreen + "  ✓ " + what + colorReset)
		return
	}
	failures++
	fmt.Println(colorRed + "  ✗ " + what + colorReset)
}

func setFaults(client *http.Client, dependencyURL, latency string, errorRate, malformedRate float64) {
	url := fmt.Sprintf("%s/admin/faults?latency=%s&error_rate=%g&malformed_rate=%g",
		dependencyURL, latency, errorRate, malformedRate)
	resp, err := client.Post(url, "", nil)
	if err != nil {
		fmt.Printf(colorYellow+"  Warning: could not set faults: %v\n"+colorReset, err)
		return
	}
	resp.Body.Close()
}

func createItem(client *http.Client, api, body string) (item, error) {
	resp, err := client.Post(api+"/items", "application/json", bytes.NewBufferString(body))
	if err != nil {
		return item{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return item{}, fmt.Errorf("status %d: %s", resp.StatusCode, b)
	}

	var created item
	err = json.NewDecoder(resp.Body).Decode(&created)
	return created, err
}

func enrich(client *http.Client, api string, id int64) (enriched, int, time.Duration) {
	var e enriched
	start := time.Now()
	status, err := getJSON(client, fmt.Sprintf("%s/enrich/%d", api, id), &e)
	took := time.Since(start)
	if err != nil {
		fmt.Printf(colorYellow+"  enrich %d: %v\n"+colorReset, id, err)
	}
	return e, status, took
}

func getJSON(client *http.Client, url string, v any) (int, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(v)
}

func printBreakers(client *http.Client, serviceURL string) {
	var stats struct {
		Breakers map[string]struct {
			State string `json:"state"`
		} `json:"breakers"`
		Fallbacks map[string]int64 `json:"fallbacks"`
	}
	if _, err := getJSON(client, serviceURL+"/stats", &stats); err != nil {
		fmt.Printf(colorYellow+"  Could not fetch stats: %v\n"+colorReset, err)
		return
	}

	for name, b := range stats.Breakers {
		fmt.Printf("  breaker %s → %s\n", name, b.State)
	}
	for cause, n := range stats.Fallbacks {
		fmt.Printf("  fallbacks (%s) → %d\n", cause, n)
	}
}
