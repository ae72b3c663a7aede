package e2e

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

const (
	port = "8081"

	// seededUser is created with cmd/adduser before the server starts.
	seededUser = "Seeded Sam"
)

var appURL = "http://localhost:" + port

func TestMain(m *testing.M) {
	os.Exit(runTestMain(m))
}

func runTestMain(m *testing.M) int {
	root, err := moduleRoot()
	if err != nil {
		fmt.Println(err)
		return 1
	}

	binDir, err := os.MkdirTemp("", "expense-ledger-e2e")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return 1
	}
	defer os.RemoveAll(binDir)

	server := filepath.Join(binDir, "server")
	adduser := filepath.Join(binDir, "adduser")
	for pkg, out := range map[string]string{"./cmd/server": server, "./cmd/adduser": adduser} {
		if err := build(root, pkg, out); err != nil {
			fmt.Println(err)
			return 1
		}
	}

	dbPath := filepath.Join(binDir, "expenses.db")
	if out, err := exec.Command(adduser, "-name", seededUser, "-db", dbPath).CombinedOutput(); err != nil {
		fmt.Printf("Failed to seed user: %v\n%s\n", err, out)
		return 1
	}

	serverCmd := exec.Command(server)
	serverCmd.Env = append(os.Environ(),
		"PORT="+port,
		"DB_DRIVER=sqlite",
		"DB_PATH="+dbPath,
		"AMQP_URL=",
		"LOG_LEVEL=warn",
	)
	serverCmd.Stdout = os.Stdout
	serverCmd.Stderr = os.Stderr

	if err := serverCmd.Start(); err != nil {
		fmt.Printf("Failed to start server: %v\n", err)
		return 1
	}
	defer func() {
		if err := serverCmd.Process.Kill(); err != nil {
			fmt.Printf("Failed to kill server: %v\n", err)
		}
		_ = serverCmd.Wait()
	}()

	if !waitReady(appURL+"/readyz", 5*time.Second) {
		fmt.Println("Server failed to start or is not reachable")
		return 1
	}

	return m.Run()
}

// moduleRoot finds the directory holding go.mod, whether tests run from e2e/ or the root.
func moduleRoot() (string, error) {
	for _, dir := range []string{"..", "."} {
		if _, err := os.Stat(filepath.Join(dir, "cmd", "server")); err == nil {
			return filepath.Abs(dir)
		}
	}
	return "", fmt.Errorf("could not find cmd/server to build")
}

func build(root, pkg, out string) error {
	cmd := exec.Command("go", "build", "-o", out, pkg)
	cmd.Dir = root
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to build %s: %v\n%s", pkg, err, output)
	}
	return nil
}

func waitReady(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
