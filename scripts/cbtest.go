// cbtest checks the gateway's circuit breaker and fallback against a
// running reservation service by stopping one of its instances.
//
// Usage:
//
//	go run ./scripts -gateway http://localhost:9999 -service-port 8000
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sort"
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

type gatewayMetrics struct {
	Services map[string]struct {
		Requests    int64 `json:"requests"`
		Successes   int64 `json:"successes"`
		Failures    int64 `json:"failures"`
		Fallbacks   int64 `json:"fallbacks"`
		Unavailable int64 `json:"unavailable"`
	} `json:"services"`
	Breakers map[string]string `json:"breakers"`
}

func main() {
	var (
		gatewayURL  = flag.String("gateway", "http://localhost:9999", "Gateway URL")
		servicePort = flag.Int("service-port", 8000, "Reservation service port to stop")
		requests    = flag.Int("requests", 20, "Requests per phase")
		skipKill    = flag.Bool("skip-kill", false, "Skip stopping the reservation service")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Println(colorCyan + "━━━ GATEWAY CIRCUIT BREAKER CHECK ━━━" + colorReset)
	fmt.Println()

	fmt.Println(colorBlue + "━━━ PHASE 1: Normal Operation ━━━" + colorReset)
	served, degraded := listNames(client, *gatewayURL, *requests)
	if served == 0 {
		fmt.Println(colorRed + "  ✗ No responses! Is the gateway running?" + colorReset)
		os.Exit(1)
	}
	fmt.Printf("  %d/%d served, %d degraded\n", served, *requests, degraded)
	if degraded == 0 {
		fmt.Println(colorGreen + "  ✓ Reservation names served by the service" + colorReset)
	} else {
		fmt.Println(colorYellow + "  ⚠ Fallback already in use" + colorReset)
	}
	fmt.Println()

	if !*skipKill {
		fmt.Println(colorBlue + "━━━ PHASE 2: Service Failure ━━━" + colorReset)
		fmt.Printf("Stopping reservation service on port %d...\n", *servicePort)
		if err := killService(*servicePort); err != nil {
			fmt.Printf(colorYellow+"  Warning: Could not stop service: %v\n"+colorReset, err)
		} else {
			fmt.Printf(colorGreen+"  ✓ Service on port %d stopped\n"+colorReset, *servicePort)
		}

		time.Sleep(500 * time.Millisecond)

		served, degraded = listNames(client, *gatewayURL, *requests)
		fmt.Printf("\n  %d/%d served, %d degraded\n", served, *requests, degraded)
		if served == *requests {
			fmt.Println(colorGreen + "  ✓ Every request answered (fallback or healthy instance)" + colorReset)
		} else {
			fmt.Println(colorYellow + "  ⚠ Some requests failed (check gateway logs)" + colorReset)
		}
		fmt.Println()
	}

	fmt.Println(colorBlue + "━━━ PHASE 3: Breaker Status ━━━" + colorReset)
	m, err := getMetrics(client, *gatewayURL+"/metrics")
	if err != nil {
		fmt.Printf(colorYellow+"  Could not fetch metrics: %v\n"+colorReset, err)
	} else {
		for _, name := range sortedKeys(m.Breakers) {
			state := m.Breakers[name]
			color := colorGreen
			if state != "CLOSED" {
				color = colorRed
			}
			fmt.Printf("    %s → %s%s%s\n", name, color, state, colorReset)
		}
		for name, s := range m.Services {
			fmt.Printf("    %s: requests=%d successes=%d failures=%d fallbacks=%d unavailable=%d\n",
				name, s.Requests, s.Successes, s.Failures, s.Fallbacks, s.Unavailable)
		}
	}
	fmt.Println()

	fmt.Println(colorBlue + "━━━ PHASE 4: Publish ━━━" + colorReset)
	resp, err := client.Post(*gatewayURL+"/reservations", "application/json", strings.NewReader(`{"name":"cbtest"}`))
	if err != nil {
		fmt.Printf(colorRed+"  POST failed: %v\n"+colorReset, err)
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusAccepted {
			fmt.Println(colorGreen + "  ✓ Reservation accepted while the service is down" + colorReset)
		} else {
			fmt.Printf(colorYellow+"  ⚠ POST returned %d\n"+colorReset, resp.StatusCode)
		}
	}
	fmt.Println()
	fmt.Println("Check gateway logs for breaker transitions.")
}

func listNames(client *http.Client, gatewayURL string, n int) (served, degraded int) {
	for i := 0; i < n; i++ {
		resp, err := client.Get(gatewayURL + "/reservations/names")
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Printf(colorYellow+"  Request %d: Status=%d\n"+colorReset, i+1, resp.StatusCode)
			continue
		}
		served++
		if resp.Header.Get("X-Degraded") == "true" {
			degraded++
		}
	}
	return served, degraded
}

func killService(port int) error {
	cmd := exec.Command("lsof", "-ti", fmt.Sprintf(":%d", port))
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("no process found on port %d", port)
	}

	pid := strings.TrimSpace(string(output))
	if pid == "" {
		return fmt.Errorf("no process found on port %d", port)
	}

	return exec.Command("kill", pid).Run()
}

func getMetrics(client *http.Client, url string) (gatewayMetrics, error) {
	var m gatewayMetrics

	resp, err := client.Get(url)
	if err != nil {
		return m, err
	}
	defer resp.Body.Close()

	err = json.NewDecoder(resp.Body).Decode(&m)
	return m, err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
