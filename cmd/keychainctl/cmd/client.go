package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/term"
)

// daemonClient talks to keychaind's loopback admin API.
type daemonClient struct {
	baseURL string
	http    *http.Client
}

func newDaemonClient() *daemonClient {
	addr := adminAddr
	if addr == "" {
		addr = viper.GetString("admin.addr")
	}
	return &daemonClient{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *daemonClient) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *daemonClient) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *daemonClient) delete(path string) error {
	return c.do(http.MethodDelete, path, nil, nil)
}

func (c *daemonClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is keychaind running at %s? %w", c.baseURL, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", res.StatusCode)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// printJSON emits the raw structure for --json output.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// promptPassword reads a password from the terminal with echo disabled. The
// KEYCHAIN_PASSWORD environment variable takes priority, for scripts.
func promptPassword(prompt string) (string, error) {
	if pass := os.Getenv("KEYCHAIN_PASSWORD"); pass != "" {
		return pass, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// promptPasswordConfirm prompts for a password twice and ensures they match.
func promptPasswordConfirm() (string, error) {
	pass, err := promptPassword("Enter password: ")
	if err != nil {
		return "", err
	}
	if pass == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pass, nil
}
