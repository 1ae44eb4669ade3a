package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const envFileName = ".env"

// isInteractiveTerminal returns true if both stdin and stdout are TTYs.
// This is used to determine if we can run the interactive setup wizard.
func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// runSetupWizard runs an interactive wizard to collect required configuration.
// Returns true if setup was successful and the server should continue starting.
func runSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("Currency Lens - First-time Setup"))
	fmt.Println()

	var openaiKey, geminiKey, webhookURL string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAI API Key").
				Description("Get yours at https://platform.openai.com/api-keys").
				Value(&openaiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					return validateOpenAIKey(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API Key").
				Description("Get yours at https://aistudio.google.com/apikey").
				Value(&geminiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					return validateGeminiKey(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Webhook URL (optional)").
				Description("Completed analyses are POSTed here. Leave empty to disable.").
				Value(&webhookURL),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	// Generate signing secret automatically
	cfg := map[string]string{
		"OPENAI_API_KEY": openaiKey,
		"GEMINI_API_KEY": geminiKey,
		"JWT_SECRET":     generateJWTSecret(),
	}
	if webhookURL != "" {
		cfg["WEBHOOK_URL"] = webhookURL
	}

	if err := writeEnvFile(cfg); err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		return false
	}

	// Set values in current process
	for k, v := range cfg {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	fmt.Println()
	fmt.Println(successStyle.Render("Configuration saved to " + envFileName))
	fmt.Println()
	fmt.Println("Starting server...")
	fmt.Println()

	return true
}

func generateJWTSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based if crypto/rand fails (unlikely)
		return fmt.Sprintf("currency-lens-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

// validateOpenAIKey validates an OpenAI API key by listing models.
func validateOpenAIKey(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.openai.com/v1/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.New("connection failed - check your internet")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return errors.New("API key rejected by OpenAI")
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected response (HTTP %d)", resp.StatusCode)
	}
	return nil
}

// validateGeminiKey validates a Gemini API key by making a simple API call.
func validateGeminiKey(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The models list endpoint is lightweight and validates the key
	q := url.Values{}
	q.Add("key", key)
	reqURL := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models?%s", q.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.New("connection failed - check your internet")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 400 || resp.StatusCode == 401 || resp.StatusCode == 403 {
		var result struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Error.Message != "" {
			return errors.New(result.Error.Message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", resp.StatusCode)
	}

	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected response (HTTP %d)", resp.StatusCode)
	}
	return nil
}

// writeEnvFile writes the configuration to the env file in the working
// directory. Uses restrictive permissions since the file contains secrets.
func writeEnvFile(cfg map[string]string) error {
	f, err := os.OpenFile(envFileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create env file: %w", err)
	}
	defer f.Close()

	// Write in a consistent order, quoting values to handle special characters
	order := []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "JWT_SECRET", "WEBHOOK_URL"}
	for _, key := range order {
		if val, ok := cfg[key]; ok {
			if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
	}
	return nil
}
